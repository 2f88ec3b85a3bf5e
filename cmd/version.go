package cmd

import (
	"fmt"
	"os"
	"runtime"
)

// Version information (injected at build time via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// runVersion displays version and environment information.
func runVersion() {
	fmt.Printf("ragserver %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Printf("Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Println()

	// Presence only; never print any part of the key itself.
	if os.Getenv("OPENAI_API_KEY") != "" {
		fmt.Println("OPENAI_API_KEY: configured")
	} else {
		fmt.Println("OPENAI_API_KEY: Not set")
		fmt.Println()
		fmt.Println("Hint: Please set OPENAI_API_KEY environment variable")
		fmt.Println("  export OPENAI_API_KEY=your-api-key")
	}
}
