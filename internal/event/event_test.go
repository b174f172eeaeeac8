package event

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMouseMove(t *testing.T) {
	ev := NewMouseMove()

	assert.Equal(t, "mousemove", ev.Type())
	assert.True(t, ev.Bubbles())
	assert.True(t, ev.Cancelable())
	assert.Equal(t, 0, ev.ClientX())
	assert.Equal(t, 0, ev.ClientY())
	assert.Equal(t, "MouseEvent", ev.Interface())
}

func TestNewShiftKeyDown(t *testing.T) {
	ev := NewShiftKeyDown()

	assert.Equal(t, "keydown", ev.Type())
	assert.True(t, ev.Bubbles())
	assert.True(t, ev.Cancelable())
	assert.Equal(t, "Shift", ev.Key())
	assert.Equal(t, "KeyboardEvent", ev.Interface())
}

func TestInitIsFreshPerCall(t *testing.T) {
	ev := NewMouseMove()

	first := ev.Init()
	first["clientX"] = 99

	second := ev.Init()
	assert.Equal(t, 0, second["clientX"])
	assert.Equal(t, 0, ev.ClientX())
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		wantType string
		wantErr  bool
	}{
		{name: "mouse move", kind: KindMouseMove, wantType: "mousemove"},
		{name: "key down", kind: KindKeyDown, wantType: "keydown"},
		{name: "unknown", kind: Kind("click"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := New(tt.kind)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, ev.Type())
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("keydown")
	require.NoError(t, err)
	assert.Equal(t, KindKeyDown, k)

	_, err = ParseKind("wheel")
	assert.Error(t, err)
}

func TestScript(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{
			name: "mouse move",
			ev:   NewMouseMove(),
			want: `new MouseEvent("mousemove", {"bubbles":true,"cancelable":true,"clientX":0,"clientY":0})`,
		},
		{
			name: "shift key down",
			ev:   NewShiftKeyDown(),
			want: `new KeyboardEvent("keydown", {"bubbles":true,"cancelable":true,"key":"Shift"})`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := Script(tt.ev)
			require.NoError(t, err)
			assert.Contains(t, script, tt.want)
			assert.Contains(t, script, "document.dispatchEvent(ev)")
			assert.True(t, strings.HasPrefix(script, "(() => {"))
		})
	}
}
