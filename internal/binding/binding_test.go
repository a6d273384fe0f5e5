package binding

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/mediaroute-go/internal/channel"
)

func TestParseComponentName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ComponentName
		wantErr bool
	}{
		{
			name:  "fully qualified class",
			input: "com.example.cast/com.example.cast.CastProviderService",
			want:  ComponentName{Package: "com.example.cast", Class: "com.example.cast.CastProviderService"},
		},
		{
			name:  "relative class",
			input: "com.example.cast/.CastProviderService",
			want:  ComponentName{Package: "com.example.cast", Class: "com.example.cast.CastProviderService"},
		},
		{
			name:  "foreign class",
			input: "com.example.cast/org.other.Service",
			want:  ComponentName{Package: "com.example.cast", Class: "org.other.Service"},
		},
		{name: "missing slash", input: "com.example.cast", wantErr: true},
		{name: "empty class", input: "com.example.cast/", wantErr: true},
		{name: "empty package", input: "/Service", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseComponentName(tt.input)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComponentName_FlattenToShortString(t *testing.T) {
	c := ComponentName{Package: "com.example.cast", Class: "com.example.cast.CastProviderService"}
	assert.Equal(t, "com.example.cast/.CastProviderService", c.FlattenToShortString())
	assert.Equal(t, "ComponentInfo{com.example.cast/.CastProviderService}", c.String())

	foreign := ComponentName{Package: "com.example.cast", Class: "org.other.Service"}
	assert.Equal(t, "com.example.cast/org.other.Service", foreign.FlattenToShortString())
}

// recordingConnection records binding callbacks.
type recordingConnection struct {
	connected    chan channel.Messenger
	disconnected chan ComponentName

	mu    sync.Mutex
	names []ComponentName
}

func newRecordingConnection() *recordingConnection {
	return &recordingConnection{
		connected:    make(chan channel.Messenger, 8),
		disconnected: make(chan ComponentName, 8),
	}
}

func (c *recordingConnection) OnServiceConnected(name ComponentName, service channel.Messenger) {
	c.mu.Lock()
	c.names = append(c.names, name)
	c.mu.Unlock()

	c.connected <- service
}

func (c *recordingConnection) OnServiceDisconnected(name ComponentName) {
	c.disconnected <- name
}

func (c *recordingConnection) waitConnected(t *testing.T) channel.Messenger {
	t.Helper()

	select {
	case m := <-c.connected:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("service was not connected")

		return nil
	}
}

func (c *recordingConnection) waitDisconnected(t *testing.T) ComponentName {
	t.Helper()

	select {
	case name := <-c.disconnected:
		return name
	case <-time.After(2 * time.Second):
		t.Fatal("service was not disconnected")

		return ComponentName{}
	}
}

func (c *recordingConnection) assertQuiet(t *testing.T) {
	t.Helper()

	select {
	case <-c.connected:
		t.Fatal("unexpected connect callback")
	case <-c.disconnected:
		t.Fatal("unexpected disconnect callback")
	case <-time.After(50 * time.Millisecond):
	}
}
