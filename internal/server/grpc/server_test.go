package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/peny/internal/logging"
	"github.com/dmitrijs2005/peny/internal/server/supervisor"
)

func startHealth(t *testing.T) (*HealthServer, healthpb.HealthClient, chan error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewHealthServer(ln.Addr().String(), logging.Nop())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), ln) }()

	conn, err := grpc.NewClient(ln.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return srv, healthpb.NewHealthClient(conn), done
}

func check(t *testing.T, c healthpb.HealthClient) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	return res.GetStatus()
}

func TestHealth_FollowsSupervisorState(t *testing.T) {
	srv, client, _ := startHealth(t)
	defer srv.Stop(context.Background())

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client))

	hooks := srv.SupervisorHooks()
	hooks.StateChanged(supervisor.Connecting, supervisor.Connected)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client))

	hooks.StateChanged(supervisor.Connected, supervisor.Reconnecting)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client))

	srv.SetState(supervisor.Connected)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client))
}

func TestHealth_StopReturnsServeCleanly(t *testing.T) {
	srv, client, done := startHealth(t)
	srv.SetState(supervisor.Connected)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	srv.Stop(ctx)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	// updates after shutdown are ignored
	srv.SetState(supervisor.Connected)
}

func TestListenAndServe_BadAddress(t *testing.T) {
	srv := NewHealthServer("127.0.0.1:99999", logging.Nop())
	assert.Error(t, srv.ListenAndServe(context.Background()))
}
