package cmd

import (
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sort"

	"github.com/gophertribe/devtool/build"
	"github.com/spf13/cobra"
)

const buildImage = "gophertribe/gobuild:1.25-bookworm"

// Target is a board the sensors cli is deployed to.
type Target struct {
	OS   string
	Arch string
	// Tags are passed to go build.
	Tags []string
}

var targets = map[string]Target{
	// NanoPi NEO (Allwinner H3), served by the nanopi adapter
	"nanopi": {OS: "linux", Arch: "arm"},
	// NanoPi NEO2 and other 64-bit boards with /dev/i2c-*
	"nanopi-neo2": {OS: "linux", Arch: "arm64"},
	"linux-amd64": {OS: "linux", Arch: "amd64"},
}

func targetNames() []string {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveTarget returns the target for a name. An empty name or "native"
// means the host platform.
func resolveTarget(name string) (Target, error) {
	if name == "" || name == "native" {
		return Target{OS: runtime.GOOS, Arch: runtime.GOARCH}, nil
	}
	t, ok := targets[name]
	if !ok {
		return Target{}, fmt.Errorf("unknown target %q, expected one of %v", name, targetNames())
	}
	return t, nil
}

func (t Target) native() bool {
	return t.OS == runtime.GOOS && t.Arch == runtime.GOARCH
}

func (t Target) output() string {
	if t.native() {
		return "dist/sensors"
	}
	return fmt.Sprintf("dist/sensors-%s-%s", t.OS, t.Arch)
}

func (t Target) goBuildOpts(version string) build.GoBuildOpts {
	return build.GoBuildOpts{
		Version:       version,
		InjectVersion: true,
		ConfigPackage: "github.com/mklimuk/agsensors/config",
		// karalabe/hid needs cgo for the MCP2221 adapter
		EnableCgo: true,
		Tags:      slices.Clone(t.Tags),
		Arch:      t.Arch,
		OS:        t.OS,
	}
}

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the sensors cli",
		Long: `Build the sensors cli for the host or a board target.

Board targets are cross-compiled inside the gobuild docker image unless
--in-container is set, in which case the cross toolchain must be available
locally (this is how the container invokes the tool).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("target")
			version, _ := cmd.Flags().GetString("version")
			inContainer, _ := cmd.Flags().GetBool("in-container")
			noCache, _ := cmd.Flags().GetBool("no-cache")

			target, err := resolveTarget(name)
			if err != nil {
				return err
			}
			if target.native() || inContainer {
				slog.Info("building", "target", name, "os", target.OS, "arch", target.Arch, "output", target.output())
				return build.GoBuild(target.output(), "./cmd/sensors", target.goBuildOpts(version))
			}
			slog.Info("building in docker", "target", name, "image", buildImage)
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-linux-%s", runtime.GOARCH),
				[]string{"build", "--target", name, "--version", version, "--in-container"},
				build.DockerBuildOpts{
					NoCache: noCache,
					Image:   buildImage,
					Arch:    target.Arch,
				})
		},
	}
	cmd.Flags().String("target", "native", fmt.Sprintf("build target: native, %v", targetNames()))
	cmd.Flags().String("version", "latest", "version injected into the binary")
	cmd.Flags().Bool("in-container", false, "cross-compile with the local toolchain")
	cmd.Flags().Bool("no-cache", false, "do not use cache when building in docker")
	return cmd
}
