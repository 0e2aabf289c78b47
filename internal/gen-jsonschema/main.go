package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/invopop/jsonschema"

	"chainguard.dev/condakit/pkg/environment"
)

var (
	outputFlag = flag.String("o", "", "output path")
	sourceFlag = flag.String("src", "../../pkg/environment", "directory holding the environment package sources, for field comments")
)

func main() {
	flag.Parse()

	if *outputFlag == "" {
		log.Fatal("output path is required")
	}

	r := new(jsonschema.Reflector)
	if err := r.AddGoComments("chainguard.dev/condakit/pkg", *sourceFlag); err != nil {
		log.Fatal(err)
	}
	schema := r.Reflect(environment.Environment{})
	schema.Title = "condakit environment"
	b := new(bytes.Buffer)
	enc := json.NewEncoder(b)
	enc.SetIndent("", "  ")
	if err := enc.Encode(schema); err != nil {
		log.Fatal(err)
	}
	//nolint:gosec  // gosec wants us to use 0600, but making this globally readable is preferred.
	if err := os.WriteFile(*outputFlag, b.Bytes(), 0644); err != nil {
		log.Fatal(err)
	}
}
