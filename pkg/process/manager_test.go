package process_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/process"
)

func testLogger() logger.Logger {
	return logger.CreateLoggerWithOutput("", "error", io.Discard)
}

func TestManager_StopRunsHandlersInReverseOrder(t *testing.T) {
	m := process.NewManager(testLogger())

	var order []string
	m.RegisterShutdownHandler(func() { order = append(order, "first") })
	m.RegisterShutdownHandler(func() { order = append(order, "second") })

	m.Start(context.Background())
	if !m.IsRunning() {
		t.Fatal("manager must report running after start")
	}

	m.Stop()

	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("handlers must run in reverse registration order, got %v", order)
	}
	if m.IsRunning() {
		t.Error("manager must report stopped after shutdown")
	}
}

func TestManager_ParentCancellationTriggersShutdown(t *testing.T) {
	m := process.NewManager(testLogger())

	done := make(chan struct{})
	m.RegisterShutdownHandler(func() { close(done) })

	parent, cancel := context.WithCancel(context.Background())
	ctx := m.Start(parent)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("parent cancellation must trigger the shutdown sequence")
	}
	select {
	case <-ctx.Done():
	default:
		t.Error("returned context must be cancelled")
	}
	m.Stop()
}
