// Command leadform submits the lead form from a terminal against a running API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kazdocs/kazdocs-platform/internal/leadform"
	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("leadform", flag.ContinueOnError)
	fs.SetOutput(stderr)
	endpoint := fs.String("endpoint", "http://localhost:8080"+leadform.DefaultEndpoint, "registration endpoint URL")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	company := fs.String("company", "", "company")
	sector := fs.String("sector", "", "business sector")
	volume := fs.String("volume", "", "yearly volume bucket: "+bucketChoices())
	message := fs.String("message", "", "free-form message")
	timeout := fs.Duration("timeout", 10*time.Second, "wait on the API before giving up")
	logLevel := fs.String("log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := logging.NewWithWriter(*logLevel, stderr)
	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	flow := leadform.NewFlow(
		leadform.NewHTTPIntake(*endpoint, client, logger),
		leadform.WithTimeout(*timeout),
		leadform.WithLogger(logger),
	)

	flow.SetName(*name)
	flow.SetEmail(*email)
	flow.SetCompany(*company)
	flow.SetSector(*sector)
	flow.SetMessage(*message)
	if *volume != "" {
		flow.SelectVolume(*volume)
	}

	status, err := flow.Submit(ctx)
	if errors.Is(err, leadform.ErrInvalidForm) {
		for _, e := range flow.VisibleErrors() {
			fmt.Fprintf(stderr, "  %s: %s\n", e.Field, e.Message)
		}
		return 2
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	dialog, ok := status.Dialog()
	if !ok {
		return 1
	}
	fmt.Fprintf(stdout, "%s\n%s\n", dialog.Title, dialog.Description)
	if dialog.IsError {
		return 1
	}
	if receipt := flow.Receipt(); receipt != nil {
		fmt.Fprintf(stdout, "id: %s\n", receipt.ID)
	}
	return 0
}

func bucketChoices() string {
	labels := make([]string, 0, len(leadform.Buckets))
	for _, b := range leadform.Buckets {
		labels = append(labels, fmt.Sprintf("%s (%s)", b, b.Label()))
	}
	return strings.Join(labels, ", ")
}
