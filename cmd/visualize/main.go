package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"floorvis/internal/genclient"
	"floorvis/internal/imaging"
)

func main() {
	var (
		imageFlag   string
		styleFlag   string
		outFlag     string
		serverFlag  string
		apiKeyFlag  string
		modelFlag   string
		timeoutFlag int
	)
	flag.StringVar(&imageFlag, "image", "", "Path to the garage floor photo (jpeg, png or webp)")
	flag.StringVar(&styleFlag, "style", "", "Floor style to apply, e.g. \"dark gray epoxy with flakes\"")
	flag.StringVar(&outFlag, "out", "", "Output path for the edited image (defaults next to the input)")
	flag.StringVar(&serverFlag, "server", "http://localhost:8080", "Base URL of the generation proxy")
	flag.StringVar(&apiKeyFlag, "api-key", "", "Shared proxy secret (fallbacks to VISUALIZER_API_KEY)")
	flag.StringVar(&modelFlag, "model", "", "Model override, server default when empty")
	flag.IntVar(&timeoutFlag, "timeout", 300, "Overall budget in seconds covering all retries")
	flag.Parse()

	imagePath := strings.TrimSpace(imageFlag)
	if imagePath == "" {
		fmt.Fprintln(os.Stderr, "an input photo is required via -image")
		os.Exit(1)
	}

	apiKey := strings.TrimSpace(apiKeyFlag)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("VISUALIZER_API_KEY"))
	}

	source, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", imagePath, err)
		os.Exit(1)
	}

	client, err := genclient.NewClient(genclient.Options{
		BaseURL: serverFlag,
		APIKey:  apiKey,
		Model:   strings.TrimSpace(modelFlag),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "configure client: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutFlag)*time.Second)
	defer cancel()

	fmt.Printf("Applying %s...\n", genclient.StyleLabel(styleFlag))
	result, err := client.Generate(ctx, imaging.EncodeDataURL(mimeForPath(imagePath), source), styleFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	_, edited, err := imaging.ParseDataURL(result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode edited image: %v\n", err)
		os.Exit(1)
	}

	outPath := strings.TrimSpace(outFlag)
	if outPath == "" {
		ext := filepath.Ext(imagePath)
		outPath = strings.TrimSuffix(imagePath, ext) + "-visualized.png"
	}
	if err := os.WriteFile(outPath, edited, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", outPath, err)
		os.Exit(1)
	}
	fmt.Printf("Saved %s\n", outPath)
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
