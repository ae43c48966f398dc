package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"flux_comfy_bot/api/comfyui"
	"flux_comfy_bot/api/llm"
	"flux_comfy_bot/databases/sqlite"
	"flux_comfy_bot/discord_bot"
	"flux_comfy_bot/discord_bot/handlers"
	"flux_comfy_bot/entities"
	queue "flux_comfy_bot/queue/comfyui"
	"flux_comfy_bot/repositories/history"
	"flux_comfy_bot/setup"
)

// Bot parameters
var (
	guildID            = flag.String("guild", "", "Guild ID. If not passed - bot registers commands globally")
	botToken           = flag.String("token", "", "Bot access token")
	apiHost            = flag.String("host", "", "Host for the ComfyUI API, e.g. 127.0.0.1:8188")
	fluxCommand        = flag.String("flux", "flux", "Generate command name. Default is \"flux\"")
	workflowFile       = flag.String("fluxversion", "", "Workflow JSON tuned for the installed checkpoint")
	loraFile           = flag.String("loras", "lora.json", "LoRA catalog JSON")
	ratioFile          = flag.String("ratios", "", "Resolution catalog JSON. Defaults to the built-in Flux ratios")
	llmBaseURL         = flag.String("llm-host", "", "Base URL for an OpenAI-compatible enhancer API")
	llmAPIKey          = flag.String("llm-key", "", "API key for the enhancer provider")
	llmModel           = flag.String("llm-model", "", "Model name for the enhancer provider")
	llmProvider        = flag.String("llm-provider", "", "Enhancer provider display name, e.g. openai or lmstudio")
	maxConcurrent      = flag.Int("concurrent", 1, "How many generations may run on the backend at once")
	generationTimeout  = flag.Duration("timeout", 5*time.Minute, "Maximum duration of one generation")
	removeCommandsFlag = flag.Bool("remove", false, "Delete all commands when bot exits")
	setupFlag          = flag.Bool("setup", false, "Run the interactive setup wizard and exit")
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	fallback := func(target *string, key string) {
		if target != nil && *target == "" {
			if value := os.Getenv(key); value != "" {
				*target = value
			}
		}
	}

	fallback(botToken, "BOT_TOKEN")
	fallback(guildID, "GUILD_ID")
	fallback(apiHost, "server_address")
	fallback(fluxCommand, "FLUX_COMMAND")
	fallback(workflowFile, "fluxversion")
	fallback(llmBaseURL, "LLM_HOST")
	fallback(llmAPIKey, "LLM_API_KEY")
	fallback(llmModel, "LLM_MODEL")
	fallback(llmProvider, "LLM_PROVIDER")
}

func main() {
	flag.Parse()

	if *setupFlag {
		if err := setup.Run(".env"); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		log.Println("Setup complete. Restart without -setup to run the bot.")
		return
	}

	if *botToken == "" {
		log.Fatalf("Bot token flag is required")
	}

	if *apiHost == "" {
		log.Fatalf("API host flag is required")
	}

	if *workflowFile == "" {
		log.Fatalf("Workflow file flag is required. Run with -setup to download a checkpoint and its workflow")
	}

	handlers.Token = botToken

	comfyClient, err := comfyui.New(comfyui.Config{
		Host: *apiHost,
	})
	if err != nil {
		log.Fatalf("Failed to create ComfyUI client: %v", err)
	}

	var enhancer llm.Enhancer
	if *llmModel != "" {
		enhancer, err = llm.NewOpenAIEnhancer(llm.Options{
			APIKey:   *llmAPIKey,
			Model:    *llmModel,
			BaseURL:  *llmBaseURL,
			Provider: *llmProvider,
		})
		if err != nil {
			log.Fatalf("Failed to create prompt enhancer: %v", err)
		}
	} else {
		log.Println("No LLM model configured, prompt enhancement disabled")
	}

	loraCatalog, err := entities.LoadLoraCatalog(*loraFile)
	if err != nil {
		log.Printf("Failed to load LoRA catalog from %s: %v", *loraFile, err)
		loraCatalog = &entities.LoraCatalog{}
	}

	ratioCatalog := entities.DefaultRatioCatalog()
	if *ratioFile != "" {
		ratioCatalog, err = entities.LoadRatioCatalog(*ratioFile)
		if err != nil {
			log.Fatalf("Failed to load ratio catalog from %s: %v", *ratioFile, err)
		}
	}

	ctx := context.Background()

	sqliteDB, err := sqlite.New(ctx)
	if err != nil {
		log.Fatalf("Failed to create sqlite database: %v", err)
	}

	historyRepo, err := history.NewRepository(&history.Config{DB: sqliteDB})
	if err != nil {
		log.Fatalf("Failed to create history repository: %v", err)
	}

	fluxQueue, err := queue.New(queue.Config{
		Client:           comfyClient,
		Enhancer:         enhancer,
		HistoryRepo:      historyRepo,
		LoraCatalog:      loraCatalog,
		RatioCatalog:     ratioCatalog,
		CommandName:      *fluxCommand,
		WorkflowFilename: *workflowFile,
		MaxConcurrent:    *maxConcurrent,
		Timeout:          *generationTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to create generation queue: %v", err)
	}

	bot, err := discord_bot.New(discord_bot.Config{
		BotToken:       *botToken,
		GuildID:        *guildID,
		Queues:         []discord_bot.Registrable{fluxQueue},
		RemoveCommands: *removeCommandsFlag,
	})
	if err != nil {
		log.Fatalf("Error creating Discord bot: %v", err)
	}

	bot.Start()

	log.Println("Gracefully shutting down.")
}
