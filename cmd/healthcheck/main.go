// Command healthcheck checks a running repodigest server and exits non-zero
// when it is unreachable or reports anything other than "ok". It is meant for
// container HEALTHCHECK directives, where no shell or curl is available.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	httphandler "github.com/ericfisherdev/repodigest/internal/adapter/driving/http"
	"github.com/ericfisherdev/repodigest/internal/config"
)

const timeout = 2 * time.Second

func main() {
	addr, err := config.LoadListenAddr()
	if err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	health, err := check(ctx, &http.Client{Timeout: timeout}, "http://"+dialAddr(addr))
	if err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck:", err)
		os.Exit(1)
	}
	fmt.Printf("ok: %d tracked repositories\n", health.TrackedRepos)
}

// check fetches the health endpoint below baseURL and returns the decoded
// body. Anything but a 200 with status "ok" is an error.
func check(ctx context.Context, client *http.Client, baseURL string) (httphandler.HealthResponse, error) {
	var health httphandler.HealthResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/health", nil)
	if err != nil {
		return health, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return health, fmt.Errorf("request health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return health, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return health, fmt.Errorf("decode health response: %w", err)
	}
	if health.Status != "ok" {
		return health, errors.New("server reported status " + health.Status)
	}

	return health, nil
}

// dialAddr turns a bind address into one the check can dial. A bind-all
// host becomes loopback because the check runs inside the same container.
func dialAddr(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return config.DefaultListenAddr
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
