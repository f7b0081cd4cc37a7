// Command ojt-chat runs the OJT assistant in the terminal.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/jrmsu/ojtinsight/chat"
	"github.com/jrmsu/ojtinsight/insight"
	"github.com/jrmsu/ojtinsight/pkg/log"
)

func main() {
	modelsDir := pflag.String("models-dir", "models", "directory holding the model artifacts, used for performance prediction")
	logLevel := pflag.String("log-level", "warn", "debug, info, warn or error")
	pflag.Parse()

	log.SetGlobalProvider(log.NewConsoleProvider(log.ToLogLevel(*logLevel)))
	logger := log.GetLoggerWithName("ojt-chat")

	var opts []chat.Option
	if model, err := insight.Load(*modelsDir); err != nil {
		logger.Warn("Models not loaded, performance prediction disabled", log.ErrorKey, err)
	} else {
		opts = append(opts, chat.WithPredictor(model))
	}
	bot, err := chat.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start assistant: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n🤖 JRMSU OJT Assistant is now active.")
	fmt.Println("Type 'exit' to close the assistant.")

	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !in.Scan() {
			break
		}
		query := strings.TrimSpace(in.Text())
		switch strings.ToLower(query) {
		case "exit", "quit":
			fmt.Println("👋 Session ended. Thank you for using JRMSU OJT Assistant.")
			return
		}
		fmt.Printf("\nJRMSU OJT Assistant: %s\n", bot.Respond(query))
	}
}
