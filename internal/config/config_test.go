package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintroom/sprintroom-cli/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(config.Options{})
	require.NoError(t, err)

	assert.Equal(t, config.DefaultDomain, cfg.Domain)
	assert.Equal(t, config.DefaultSTUN, cfg.STUNServer)
	assert.Equal(t, config.DefaultRecordingURL, cfg.RecordingURL)
	assert.False(t, cfg.Insecure)
	assert.Empty(t, cfg.TURNServer)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SPRINTROOM_DOMAIN", "env.example.com")
	t.Setenv("TURN_SERVER", "turn:env.example.com")

	cfg, err := config.Load(config.Options{Domain: "flag.example.com"})
	require.NoError(t, err)

	assert.Equal(t, "flag.example.com", cfg.Domain, "flag beats env")
	assert.Equal(t, "turn:env.example.com", cfg.TURNServer, "env beats default")
}

func TestLoadInsecureFromEnv(t *testing.T) {
	t.Setenv("SPRINTROOM_INSECURE", "1")

	cfg, err := config.Load(config.Options{})
	require.NoError(t, err)
	assert.True(t, cfg.Insecure)
}

func TestWebSocketURL(t *testing.T) {
	cfg, err := config.Load(config.Options{Domain: "meet.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "wss://meet.example.com/ws/standup-42/alice", cfg.WebSocketURL("standup-42", "alice"))

	cfg.Insecure = true
	assert.Equal(t, "ws://meet.example.com/ws/standup-42/alice", cfg.WebSocketURL("standup-42", "alice"))
}

func TestGetRoomLink(t *testing.T) {
	cfg, err := config.Load(config.Options{Domain: "meet.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://meet.example.com/meeting/standup-42", cfg.GetRoomLink("standup-42"))
}

func TestGetTURNServers(t *testing.T) {
	cfg, err := config.Load(config.Options{})
	require.NoError(t, err)
	assert.Nil(t, cfg.GetTURNServers(), "no TURN configured by default")

	cfg.TURNServer = "turn:relay.example.com"
	servers := cfg.GetTURNServers()
	require.Len(t, servers, 3)
	assert.Contains(t, servers[0], "transport=udp")
	assert.Contains(t, servers[1], "transport=tcp")
	assert.Contains(t, servers[2], "turns:")
}
