// cmd/tools/jobspec-lint/main.go

// jobspec-lint validates an aggregation job registry file, for CI use.
package main

import (
	"flag"
	"fmt"
	"os"

	"github-portal/pkg/registry"
)

func main() {
	path := flag.String("file", "configs/jobs.json", "path to the job registry file")
	flag.Parse()

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ok: %d job(s), version %s\n", len(reg.Jobs), reg.Version)
	for _, job := range reg.Jobs {
		fmt.Printf("  - %s (%s/%s -> %s)\n", job.Name, job.APIName, job.OuterMethod, job.CollectionKey)
	}
}
