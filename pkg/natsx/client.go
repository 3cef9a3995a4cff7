package natsx

import (
	"os"

	"github.com/nats-io/nats.go"
)

// EnvURL is the environment variable holding the NATS server url.
const EnvURL = "NATS_URL"

// Configured reports whether a NATS url is present in the environment.
func Configured() bool {
	return os.Getenv(EnvURL) != ""
}

// NewClient connects to the NATS server named by NATS_URL. Without explicit
// options the connection is named "reagent" and uses compression.
func NewClient(opts ...nats.Option) (*nats.Conn, error) {
	if len(opts) == 0 {
		opts = append(opts, nats.Name("reagent"), nats.Compression(true))
	}
	return nats.Connect(os.Getenv(EnvURL), opts...)
}
