// FilePath: cmd/main.go
package main

import (
	"fmt"
	"os"

	tm "github.com/buger/goterm"
	nuts "github.com/vaudience/go-nuts"

	"github.com/pcdvisual/telemetry-hub/internal/config"
	"github.com/pcdvisual/telemetry-hub/internal/server"
)

func main() {
	ClearConsole()
	nuts.InitVersion()
	DrawLogo()
	nuts.L.Infof("[Main] Starting Telemetry Hub v%s", nuts.GetVersion())

	cfg, err := config.Load()
	if err != nil {
		nuts.L.Fatalf("[Main] Failed to load configuration: %v", err)
	}

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		os.Exit(1)
	}
}

// ClearConsole clears the console screen.
func ClearConsole() {
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Flush()
}

func DrawLogo() {
	fmt.Println()
	lines := []string{
		"  ____   ____ ____    _   _       _     ",
		" |  _ \\ / ___|  _ \\  | | | |_   _| |__  ",
		" | |_) | |   | | | | | |_| | | | | '_ \\ ",
		" |  __/| |___| |_| | |  _  | |_| | |_) |",
		" |_|    \\____|____/  |_| |_|\\__,_|_.__/ ",
		"..........................................  " + nuts.GetVersion(),
	}

	for _, line := range lines {
		fmt.Println(tm.Color(line, tm.CYAN))
	}
}
