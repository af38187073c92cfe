// Command tau exports the constraint engine as a vm-orbit satellite so
// that sandboxed wasm controllers can drive sequences in the host.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/taubyte/vm-orbit/satellite"

	"github.com/DataSpeaksTech/aici/envconfig"
	"github.com/DataSpeaksTech/aici/logutil"
)

func main() {
	logutil.Setup(os.Stderr, envconfig.LogLevel())

	server, err := new(context.TODO(), envconfig.Vocab(), envconfig.Library())
	if err != nil {
		slog.Error("satellite init failed", "error", err)
		os.Exit(1)
	}

	satellite.Export("aici", server)
}
