package main

import (
	"context"
	"fmt"

	"emperror.dev/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/CageChen/clarvfs/internal/location"
	"github.com/CageChen/clarvfs/internal/manifest"
	"github.com/CageChen/clarvfs/internal/vfs"
)

var checkCmd = &cobra.Command{
	Use:   "check <manifest>",
	Short: "Read a manifest and every contract it lists",
	Args:  cobra.ExactArgs(1),
	RunE: withAccessor(func(cmd *cobra.Command, a *vfs.Accessor, args []string) error {
		loc, err := parseLocation(args[0])
		if err != nil {
			return err
		}
		results, err := checkProject(cmd.Context(), a, loc)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, r := range results {
			if r.err != nil {
				failed++
				fmt.Fprintf(out, "FAIL %-24s %v\n", r.name, r.err)
				continue
			}
			fmt.Fprintf(out, "ok   %-24s %s (%d bytes)\n", r.name, r.location, r.size)
		}
		if failed > 0 {
			return errors.Errorf("%d of %d contracts could not be read", failed, len(results))
		}
		return nil
	}),
}

type contractResult struct {
	name     string
	location location.Location
	size     int
	err      error
}

// checkProject reads every contract of the manifest concurrently. Failures
// are reported per contract; only a failure to read or parse the manifest
// itself is returned as an error.
func checkProject(ctx context.Context, a vfs.FileAccessor, loc location.Location) ([]contractResult, error) {
	_, content, err := a.ReadManifestContent(ctx, loc)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Parse(content)
	if err != nil {
		return nil, err
	}

	names := m.ContractNames()
	results := make([]contractResult, len(names))

	var g errgroup.Group
	g.SetLimit(8)
	for i, name := range names {
		g.Go(func() error {
			resolved, text, err := a.ReadContractContent(ctx, loc, m.Contracts[name].Path)
			results[i] = contractResult{name: name, location: resolved, size: len(text), err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}
