package main

import (
	"forkmap-backend/cmd/forkmap-cli/commands"
	"forkmap-backend/lib/serviceutil"
	"forkmap-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	err := telemetry.SetupFromEnv(ctx, "forkmap-cli")
	if err != nil {
		serviceutil.Fatal("failed to initialize telemetry", err)
	}
	defer telemetry.Shutdown(ctx)

	commands.ExecuteContext(ctx)
}
