package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/carlosprados/pmcontrol/internal/version"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8089", "pmsupervisor base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "Request timeout")
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	c := newClient(*addr, *timeout)
	var err error
	switch cmd := flag.Arg(0); cmd {
	case "status":
		err = c.do(http.MethodGet, "/v1/agent", nil)
	case "health":
		err = c.do(http.MethodGet, "/healthz", nil)
	case "start":
		err = c.do(http.MethodPost, "/v1/agent:start", nil)
	case "stop":
		err = c.do(http.MethodPost, "/v1/agent:stop", nil)
	case "log-level":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "missing level (1 alert .. 7 debug)")
			os.Exit(2)
		}
		lvl, perr := strconv.Atoi(flag.Arg(1))
		if perr != nil {
			fmt.Fprintln(os.Stderr, "level must be a number:", perr)
			os.Exit(2)
		}
		body, _ := json.Marshal(map[string]int{"level": lvl})
		err = c.do(http.MethodPut, "/v1/agent/log-level", body)
	case "version":
		err = c.version()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("pmctl [--addr URL] <command> [args]")
	fmt.Println("commands:")
	fmt.Println("  status                   Show supervisor status")
	fmt.Println("  health                   Show daemon health")
	fmt.Println("  start                    Start the package manager agent")
	fmt.Println("  stop                     Stop the package manager agent")
	fmt.Println("  log-level <1..7>         Set the log level (CM severity)")
	fmt.Println("  version                  Show client and daemon versions")
}

type client struct {
	base    string
	timeout time.Duration
	http    *retryablehttp.Client
}

func newClient(base string, timeout time.Duration) *client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 4
	hc.RetryWaitMin = 250 * time.Millisecond
	hc.RetryWaitMax = 2 * time.Second
	hc.Logger = nil
	// Only transport failures are retried, never a server answer.
	hc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err == nil {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return &client{base: base, timeout: timeout, http: hc}
}

func (c *client) send(method, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequest(method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = cancelOnClose{resp.Body, cancel}
	return resp, nil
}

func (c *client) do(method, path string, body []byte) error {
	resp, err := c.send(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var v any
	if json.Unmarshal(b, &v) == nil {
		b, _ = json.MarshalIndent(v, "", "  ")
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(b))
	}
	os.Stdout.Write(b)
	fmt.Println()
	return nil
}

func (c *client) version() error {
	fmt.Printf("pmctl %s (%s)\n", version.Version, version.Commit)
	resp, err := c.send(http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var h struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return fmt.Errorf("decode health: %w", err)
	}
	fmt.Printf("pmsupervisor %s\n", h.Version)
	return version.Compatible(h.Version)
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
