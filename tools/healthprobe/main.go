package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/agendly/agendly/libs/config"
	"github.com/agendly/agendly/libs/grpcx"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

// healthprobe exits 0 when the availability service reports SERVING over gRPC
// (and, with -ready-url, when /readyz answers 200). Used by container health checks.
func main() {
	var (
		addr     = flag.String("addr", config.String("HEALTHPROBE_ADDR", "localhost:9096"), "grpc address of the service")
		service  = flag.String("service", config.String("HEALTHPROBE_SERVICE", ""), "health service name (empty = overall)")
		readyURL = flag.String("ready-url", config.String("HEALTHPROBE_READY_URL", ""), "optional http readiness url, e.g. http://localhost:8086/readyz")
		timeout  = flag.Duration("timeout", config.Duration("HEALTHPROBE_TIMEOUT", 3*time.Second), "overall timeout")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := grpcx.Dial(ctx, *addr, grpcx.DialOptions{Timeout: *timeout})
	if err != nil {
		fatal("dial " + *addr + ": " + err.Error())
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: *service})
	if err != nil {
		fatal("health check: " + err.Error())
	}
	fmt.Println(protojson.Format(resp))
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		os.Exit(1)
	}

	if u := strings.TrimSpace(*readyURL); u != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			fatal(err.Error())
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			fatal(err.Error())
		}
		defer res.Body.Close()
		fmt.Printf("http status=%d\n", res.StatusCode)
		if res.StatusCode != http.StatusOK {
			os.Exit(1)
		}
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
