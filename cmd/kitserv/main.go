// Command kitserv runs the embeddable kitserv HTTP server standalone,
// serving a directory of static files with no API endpoints registered.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmcgee01125/kitserv"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		root       string
		port       int
		numSlots   int
		numWorkers int
		fallback   string
		rootFile   string
		ipv4Only   bool
		ipv6Only   bool
	)

	cmd := &cobra.Command{
		Use:   "kitserv",
		Short: "Serve a directory of static files over HTTP/1.x",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &kitserv.Config{
				Context: kitserv.RequestContext{
					Root:         root,
					RootFallback: rootFile,
					Fallback:     fallback,
				},
				NumSlots:   numSlots,
				NumWorkers: numWorkers,
				Port:       port,
				BindIPv4:   ipv4Only || !ipv6Only,
				BindIPv6:   ipv6Only || !ipv4Only,
			}
			return kitserv.Start(cfg)
		},
	}

	var flags *pflag.FlagSet = cmd.Flags()
	flags.StringVarP(&root, "root", "w", "", "directory to serve (required)")
	flags.IntVarP(&port, "port", "p", 8012, "listen port")
	flags.IntVarP(&numSlots, "slots", "s", 128, "total number of connection slots across all workers")
	flags.IntVarP(&numWorkers, "workers", "t", 2, "number of worker goroutines")
	flags.StringVarP(&fallback, "fallback", "f", "200.html", "path, relative to root, served when no other candidate resolves")
	flags.StringVarP(&rootFile, "index", "r", "index.html", "path, relative to root, served for the / route")
	flags.BoolVarP(&ipv4Only, "ipv4", "4", false, "bind IPv4 only (default: both)")
	flags.BoolVarP(&ipv6Only, "ipv6", "6", false, "bind IPv6 only (default: both)")
	cmd.MarkFlagRequired("root")

	return cmd
}
