package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"fraudguard/registry"
)

func main() {
	registryURI := flag.String("registry", "http://localhost:5000", "model registry URI")
	modelName := flag.String("model_name", "credit-fraud", "registered model name")
	version := flag.String("version", "", "model version to promote")
	alias := flag.String("alias", "production", "alias to point at the version")
	stage := flag.String("stage", "", "stage to transition the version into instead of setting an alias")
	minAUC := flag.Float64("min_auc", 0, "refuse promotion when the version's AUC is below this")
	reloadApp := flag.String("reload_app", "", "serving app base URL to reload after promotion")
	flag.Parse()

	if *version == "" {
		log.Fatal("version is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := registry.NewClient(*registryURI, 30*time.Second)

	mv, err := client.GetModelVersion(ctx, *modelName, *version)
	if err != nil {
		log.Fatalf("failed to fetch version: %v", err)
	}

	if *minAUC > 0 {
		auc, ok := mv.Metrics["auc"]
		if !ok {
			log.Fatalf("version %s has no recorded AUC, cannot enforce -min_auc", *version)
		}
		if auc < *minAUC {
			log.Fatalf("version %s AUC %.4f is below the required %.4f", *version, auc, *minAUC)
		}
		log.Printf("version %s AUC %.4f passes the %.4f gate", *version, auc, *minAUC)
	}

	if *stage != "" {
		if err := client.TransitionStage(ctx, *modelName, *version, *stage); err != nil {
			log.Fatalf("failed to transition stage: %v", err)
		}
		fmt.Printf("%s version %s moved to stage %s\n", *modelName, *version, *stage)
	} else {
		if err := client.SetAlias(ctx, *modelName, *alias, *version); err != nil {
			log.Fatalf("failed to set alias: %v", err)
		}
		fmt.Printf("%s@%s now points at version %s\n", *modelName, *alias, *version)
	}

	if *reloadApp != "" {
		if err := triggerReload(ctx, *reloadApp); err != nil {
			log.Fatalf("promotion succeeded but app reload failed: %v", err)
		}
		fmt.Printf("serving app at %s reloaded\n", *reloadApp)
	}
}

func triggerReload(ctx context.Context, baseURL string) error {
	endpoint := strings.TrimRight(baseURL, "/") + "/reload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("reload returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
