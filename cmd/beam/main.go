// Command beam issues a single API request against a configured
// environment and prints the response.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/beam"
	"github.com/adamwoolhether/beam/client"
	"github.com/adamwoolhether/beam/config"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type requestFlags struct {
	configFile string
	envFile    string
	method     string
	apiVersion string
	query      []string
	body       []string
	headers    []string
	bearer     string
	basic      string
	raw        bool
	timeout    time.Duration
	useResty   bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags requestFlags

	rootCmd := &cobra.Command{
		Use:   "beam",
		Short: "beam - issue API requests against a configured environment",
		Long: `beam sends one request to the environment described by beam.yaml,
a .env file or BEAM_* variables, and prints the response.

Examples:
  beam request users                          # GET <base_url>/users
  beam request search -q term=go              # query parameters
  beam request users -X POST -d name=alice    # JSON body parameters
  beam request avatar/1 --raw > avatar.png    # raw bytes
  beam env                                    # show the resolved environment`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Config file (default ./beam.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "Load environment variables from file (default ./.env)")

	requestCmd := &cobra.Command{
		Use:   "request <path>",
		Short: "Execute one request and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd.Context(), stdout, stderr, flags, args[0])
		},
	}

	requestCmd.Flags().StringVarP(&flags.method, "method", "X", "GET", "HTTP method (GET/POST/PUT/DELETE)")
	requestCmd.Flags().StringVar(&flags.apiVersion, "api-version", "", "Version path segment, e.g. v1")
	requestCmd.Flags().StringArrayVarP(&flags.query, "query", "q", nil, "URL parameter (key=value), can be repeated")
	requestCmd.Flags().StringArrayVarP(&flags.body, "data", "d", nil, "JSON body parameter (key=value), can be repeated")
	requestCmd.Flags().StringArrayVarP(&flags.headers, "header", "H", nil, "Request header (Key: value), can be repeated")
	requestCmd.Flags().StringVar(&flags.bearer, "bearer", "", "Bearer token")
	requestCmd.Flags().StringVar(&flags.basic, "basic", "", "Basic credentials (user:password)")
	requestCmd.Flags().BoolVar(&flags.raw, "raw", false, "Print the body as received instead of parsing JSON")
	requestCmd.Flags().DurationVarP(&flags.timeout, "timeout", "t", beam.DefaultTimeout, "Request timeout")
	requestCmd.Flags().BoolVar(&flags.useResty, "resty", false, "Send through the resty transport")

	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Print the resolved environment as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			env, err := cfg.Environment()
			if err != nil {
				return fmt.Errorf("building environment: %w", err)
			}

			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(env)
		},
	}

	rootCmd.AddCommand(requestCmd, envCmd)

	return rootCmd
}

func loadConfig(flags requestFlags) (*config.Config, error) {
	var opts []config.Option
	if flags.configFile != "" {
		opts = append(opts, config.WithFile(flags.configFile))
	}
	if flags.envFile != "" {
		opts = append(opts, config.WithEnvFile(flags.envFile))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}

func runRequest(ctx context.Context, stdout, stderr io.Writer, flags requestFlags, path string) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	env, err := cfg.Environment()
	if err != nil {
		return fmt.Errorf("building environment: %w", err)
	}

	req, err := buildEndpoint(flags, path)
	if err != nil {
		return err
	}

	opts := []beam.Option{beam.WithLogger(logger)}
	if flags.useResty {
		opts = append(opts, beam.WithResty(client.NewResty(nil, logger)))
	} else {
		opts = append(opts, beam.WithClientOptions(cfg.ClientOptions()...))
	}

	svc, err := beam.New(env, opts...)
	if err != nil {
		return fmt.Errorf("building service: %w", err)
	}
	defer svc.Close()

	logger.Debug("request", "describe", beam.Describe(env, req))

	return printResponse(stdout, beam.Await(ctx, svc, req))
}

func buildEndpoint(flags requestFlags, path string) (beam.Endpoint, error) {
	e := beam.Endpoint{
		APIVersion:   flags.apiVersion,
		URLPath:      strings.TrimPrefix(path, "/"),
		HTTPMethod:   beam.Method(strings.ToUpper(flags.method)),
		TimeoutAfter: flags.timeout,
	}

	switch e.HTTPMethod {
	case beam.MethodGet, beam.MethodPost, beam.MethodPut, beam.MethodDelete:
	default:
		return beam.Endpoint{}, fmt.Errorf("unsupported method[%s]", flags.method)
	}

	if flags.raw {
		e.Expect = beam.DataRaw
	}

	switch {
	case len(flags.query) > 0 && len(flags.body) > 0:
		return beam.Endpoint{}, fmt.Errorf("--query and --data are mutually exclusive")
	case len(flags.query) > 0:
		params, err := pairs(flags.query, "=")
		if err != nil {
			return beam.Endpoint{}, fmt.Errorf("parsing --query: %w", err)
		}
		e.Params = beam.URLParameters(params)
	case len(flags.body) > 0:
		params, err := pairs(flags.body, "=")
		if err != nil {
			return beam.Endpoint{}, fmt.Errorf("parsing --data: %w", err)
		}
		e.Params = beam.BodyParameters(params)
	}

	if len(flags.headers) > 0 {
		headers, err := pairs(flags.headers, ":")
		if err != nil {
			return beam.Endpoint{}, fmt.Errorf("parsing --header: %w", err)
		}
		e.HeaderMap = make(map[string]string, len(headers))
		for k, v := range headers {
			e.HeaderMap[k] = strings.TrimSpace(v.(string))
		}
	}

	switch {
	case flags.bearer != "" && flags.basic != "":
		return beam.Endpoint{}, fmt.Errorf("--bearer and --basic are mutually exclusive")
	case flags.bearer != "":
		e.Auth = beam.BearerAuth{Token: flags.bearer}
	case flags.basic != "":
		user, password, ok := strings.Cut(flags.basic, ":")
		if !ok {
			return beam.Endpoint{}, fmt.Errorf("--basic must be user:password")
		}
		e.Auth = beam.BasicAuth{User: user, Password: password}
	}

	return e, nil
}

func pairs(values []string, sep string) (map[string]any, error) {
	m := make(map[string]any, len(values))
	for _, kv := range values {
		k, v, ok := strings.Cut(kv, sep)
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("expected key%svalue, got %q", sep, kv)
		}
		m[strings.TrimSpace(k)] = v
	}

	return m, nil
}

func printResponse(w io.Writer, resp beam.Response) error {
	switch r := resp.(type) {
	case beam.JSONResponse:
		if err := r.JSON.Err(); err != nil {
			fmt.Fprintln(w, r.Code)
			_, _ = w.Write(r.JSON.Raw())
			return err
		}

		out, err := json.MarshalIndent(r.JSON.Value(), "", "  ")
		if err != nil {
			return fmt.Errorf("formatting body: %w", err)
		}
		fmt.Fprintln(w, r.Code)
		fmt.Fprintln(w, string(out))
		return nil

	case beam.DataResponse:
		_, err := w.Write(r.Data)
		return err

	case beam.ErrorResponse:
		return fmt.Errorf("%s: %w", r.Code, r.Err)

	default:
		return fmt.Errorf("unexpected response %T", resp)
	}
}
