package main

import (
	"context"
	"os"

	"casevault-backend/cmd/stories-cli/commands"
	"casevault-backend/lib/osutil"
	"casevault-backend/lib/telemetry"
)

func main() {
	ctx := osutil.SignalContext()

	// a missing telemetry.json5 just means no collector is around
	instance, err := telemetry.SetupFromEnv(ctx, "stories-cli")
	if err != nil && !os.IsNotExist(err) {
		osutil.Fatal("failed to initialize telemetry", err)
	}
	defer instance.Shutdown(context.Background())

	telemetry.InitSlog(true)
	telemetry.InstrumentPerfStats(ctx)
	commands.ExecuteContext(ctx)
}
