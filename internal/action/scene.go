package action

import (
	"context"
	"fmt"

	"github.com/streamkitdev/streamkit/internal/platform"
)

// SceneChange switches the active scene. Payload: scene.
type SceneChange struct {
	Scenes platform.SceneController
}

func (a *SceneChange) Type() string { return TypeSceneChange }

func (a *SceneChange) Execute(ctx context.Context, actx *Context, payload map[string]any) error {
	scene := str(payload, "scene")
	if scene == "" {
		return fmt.Errorf("scene_change: scene is required")
	}
	return a.Scenes.ChangeScene(ctx, actx.StreamerID, scene)
}

// SourceToggle flips a scene source's visibility. Payload: source.
type SourceToggle struct {
	Scenes platform.SceneController
}

func (a *SourceToggle) Type() string { return TypeSourceToggle }

func (a *SourceToggle) Execute(ctx context.Context, actx *Context, payload map[string]any) error {
	source := str(payload, "source")
	if source == "" {
		return fmt.Errorf("source_toggle: source is required")
	}
	return a.Scenes.ToggleSource(ctx, actx.StreamerID, source)
}

// MuteToggle flips an audio input's mute state. Payload: input.
type MuteToggle struct {
	Scenes platform.SceneController
}

func (a *MuteToggle) Type() string { return TypeMuteToggle }

func (a *MuteToggle) Execute(ctx context.Context, actx *Context, payload map[string]any) error {
	input := str(payload, "input")
	if input == "" {
		return fmt.Errorf("mute_toggle: input is required")
	}
	return a.Scenes.ToggleMute(ctx, actx.StreamerID, input)
}
