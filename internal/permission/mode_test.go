package permission

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/toolguard/internal/event"
	"github.com/opencode-ai/toolguard/pkg/types"
)

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		parsed, err := ParseMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	_, err := ParseMode("accept_edits")
	assert.Error(t, err)
}

func TestModeFromSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings *types.Settings
		expected Mode
	}{
		{"nil", nil, ModeDefault},
		{"empty", &types.Settings{}, ModeDefault},
		{"permissionMode", &types.Settings{PermissionMode: types.String("plan")}, ModePlan},
		{
			"defaultMode wins",
			&types.Settings{
				PermissionMode: types.String("plan"),
				Permissions:    &types.PermissionSettings{DefaultMode: types.String("acceptEdits")},
			},
			ModeAcceptEdits,
		},
		{
			"unknown defaultMode skipped",
			&types.Settings{
				PermissionMode: types.String("dontAsk"),
				Permissions:    &types.PermissionSettings{DefaultMode: types.String("yolo")},
			},
			ModeDontAsk,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ModeFromSettings(tt.settings))
		})
	}
}

func TestSharedMode_GetSet(t *testing.T) {
	m := NewSharedMode("", nil)
	assert.Equal(t, ModeDefault, m.Get())

	m.Set(ModePlan)
	assert.Equal(t, ModePlan, m.Get())
}

func TestSharedMode_PublishesChanges(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	var got event.ModeChangedData
	bus.Subscribe(event.ModeChanged, func(e event.Event) {
		got = e.Data.(event.ModeChangedData)
		wg.Done()
	})

	m := NewSharedMode(ModeDefault, bus)
	m.Set(ModeDefault)
	m.Set(ModeBypassPermissions)
	wg.Wait()

	assert.Equal(t, "default", got.From)
	assert.Equal(t, "bypassPermissions", got.To)
}

func TestSharedMode_Concurrent(t *testing.T) {
	m := NewSharedMode(ModeDefault, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			m.Set(Modes[i%len(Modes)])
		}(i)
		go func() {
			defer wg.Done()
			assert.Contains(t, Modes, m.Get())
		}()
	}
	wg.Wait()
}
