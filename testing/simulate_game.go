// simulate_game replays a headless session twice with the same seed and
// checks both runs told the same stories in the same order. With -llm the
// first run is played by Gemini instead and only reported.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"slices"

	"github.com/tatianab/storyloop/internal/cli"
	"github.com/tatianab/storyloop/internal/config"
	"github.com/tatianab/storyloop/internal/narrator"
)

const maxTurns = 200

func main() {
	seed := flag.Int64("seed", 1, "rng seed shared by both runs")
	useLLM := flag.Bool("llm", false, "let Gemini play (needs GEMINI_API_KEY)")
	verbose := flag.Bool("v", false, "print the engine log")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.Seed = *seed

	var logOut io.Writer = io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	sim := cli.Simulation{Config: cfg, MaxCycles: maxTurns, LogOut: logOut}

	if *useLLM {
		if !cfg.HasGemini() {
			log.Fatal("GEMINI_API_KEY is not set")
		}
		gem, err := narrator.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("Failed to create player client: %v", err)
		}
		defer gem.Close()
		sim.Generator = gem

		fmt.Println("--- Gemini plays ---")
		trace, err := sim.Run(ctx)
		if err != nil {
			log.Fatalf("Simulation failed: %v", err)
		}
		fmt.Println(trace.Text())
		return
	}

	fmt.Printf("--- Run 1 (seed %d) ---\n", *seed)
	first, err := sim.Run(ctx)
	if err != nil {
		log.Fatalf("Run 1 failed: %v", err)
	}
	fmt.Println(first.Text())

	fmt.Printf("\n--- Run 2 (seed %d) ---\n", *seed)
	second, err := sim.Run(ctx)
	if err != nil {
		log.Fatalf("Run 2 failed: %v", err)
	}

	if !slices.Equal(first.Cycles, second.Cycles) || !slices.Equal(first.Transcript, second.Transcript) || first.Rng != second.Rng {
		fmt.Println(second.Text())
		log.Fatalf("Runs diverged")
	}
	fmt.Printf("Both runs matched: %d cycles, stopped %s, rng used %d\n",
		len(first.Cycles), first.Stopped, first.Rng.UsedCount)
}
