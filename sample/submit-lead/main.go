package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/xavierca1/lead-relay/internal/entity"
	"github.com/xavierca1/lead-relay/internal/infra/integration/notion"
	"github.com/xavierca1/lead-relay/internal/usecase"
)

// Submits one lead straight to the configured Notion database, without the
// HTTP server or a notifier. Run it twice with the same email to see the
// duplicate path.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using the process environment")
	}

	email := flag.String("email", "", "lead email (required)")
	name := flag.String("name", "", "lead name")
	note := flag.String("note", "", "free-form note")
	source := flag.String("source", "sample", "lead source")
	flag.Parse()

	if *email == "" {
		log.Fatal("-email is required")
	}

	client, err := notion.NewClient(notion.Options{
		APIKey:     os.Getenv("NOTION_API_KEY"),
		DatabaseID: os.Getenv("NOTION_LEADS_DATABASE_ID"),
		BaseURL:    os.Getenv("NOTION_BASE_URL"),
	})
	if err != nil {
		log.Fatalf("notion client: %v", err)
	}
	store := notion.NewStore(client)
	resolver := usecase.NewSchemaResolver(store)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mapping, err := resolver.Resolve(ctx)
	if err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Printf("title=%q email=%q note=%q source=%q status=%q (%s)\n",
		mapping.Title.Name, mapping.Email.Name, mapping.Note.Name, mapping.Source.Name, mapping.Status.Name, mapping.StatusKind)

	uc := usecase.NewCaptureLeadUseCase(store, resolver, usecase.NewNotifier(nil), usecase.CaptureLeadOptions{})
	result, err := uc.Execute(ctx, entity.LeadSubmission{Email: *email, Name: *name, Note: *note, Source: *source})
	uc.Wait()

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if err != nil {
		os.Exit(1)
	}
}
