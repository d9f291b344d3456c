package main

import (
	"flag"
	"log"

	"github.com/danmuck/glicbridge/internal/config"
)

func main() {
	kind := flag.String("kind", "host", "config kind: host|client")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing host config file")
	input := flag.String("input", "cmd/glichost/config.toml", "host config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if *kind != "host" {
			log.Fatalf("validation supports host configs only; run glicclient -config to check a client config")
		}
		if _, err := config.LoadHostConfig(*input); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated host config at %s", *input)
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case "host":
			target = "cmd/glichost/config.toml"
		case "client":
			target = "cmd/glicclient/config.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
