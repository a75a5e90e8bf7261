package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stakaya/planday/internal/config"
	"github.com/stakaya/planday/internal/daemon"
	"github.com/stakaya/planday/internal/uds"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "daemon":
		runDaemon(os.Args[2:])
	case "down":
		runDown(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "task":
		runTask(os.Args[2:])
	case "energy":
		runEnergy(os.Args[2:])
	case "workout":
		runWorkout(os.Args[2:])
	case "timer":
		runTimer(os.Args[2:])
	case "version":
		fmt.Printf("planday %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runInit(args []string) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	plannerDir := filepath.Join(target, ".planday")
	for _, sub := range []string{"", "plans", "logs"} {
		if err := os.MkdirAll(filepath.Join(plannerDir, sub), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "init: %v\n", err)
			os.Exit(1)
		}
	}
	if _, err := os.Stat(filepath.Join(plannerDir, config.FileName)); err == nil {
		fmt.Fprintf(os.Stderr, "init: %s already exists\n", filepath.Join(plannerDir, config.FileName))
		os.Exit(1)
	}
	if err := config.Save(plannerDir, config.Default()); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	absDir, _ := filepath.Abs(plannerDir)
	fmt.Printf("Initialized .planday/ in %s\n", absDir)
}

func runDaemon(_ []string) {
	plannerDir, cfg := mustLoad()
	d, err := daemon.New(plannerDir, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create daemon: %v\n", err)
		os.Exit(1)
	}
	if err := d.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "daemon: %v\n", err)
		os.Exit(1)
	}
}

func runDown(_ []string) {
	resp := send("shutdown", nil)
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "down: %s\n", resp.Error.Message)
		os.Exit(1)
	}
	fmt.Println("Shutdown requested.")
}

func runStatus(args []string) {
	jsonOutput := false
	for _, a := range args {
		switch a {
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: planday status [--json]\n", a)
			os.Exit(1)
		}
	}

	resp := send("status", nil)
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "status: %s\n", resp.Error.Message)
		os.Exit(1)
	}
	if jsonOutput {
		fmt.Println(string(resp.Data))
		return
	}
	var payload daemon.StatusPayload
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		fmt.Fprintf(os.Stderr, "status: decode response: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(daemon.FormatStatus(payload))
}

func runTask(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: planday task <toggle|add|delete|edit> [options]")
		os.Exit(1)
	}
	switch args[0] {
	case "toggle":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: planday task toggle <task_id>")
			os.Exit(1)
		}
		dispatch("task_toggle", map[string]string{"task_id": args[1]})
	case "add":
		dispatch("task_add", nil)
	case "delete":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: planday task delete <task_id>")
			os.Exit(1)
		}
		dispatch("task_delete", map[string]string{"task_id": args[1]})
	case "edit":
		if len(args) < 4 {
			fmt.Fprintln(os.Stderr, "usage: planday task edit <task_id> <title|time> <value>")
			os.Exit(1)
		}
		dispatch("task_edit", map[string]string{
			"task_id": args[1], "field": args[2], "value": args[3],
		})
	default:
		fmt.Fprintf(os.Stderr, "unknown task subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "usage: planday task <toggle|add|delete|edit> [options]")
		os.Exit(1)
	}
}

func runEnergy(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: planday energy <low|medium|high>")
		os.Exit(1)
	}
	dispatch("energy_set", map[string]string{"level": args[0]})
}

func runWorkout(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: planday workout <on|off>")
		os.Exit(1)
	}
	switch args[0] {
	case "on":
		dispatch("workout_set", map[string]bool{"enabled": true})
	case "off":
		dispatch("workout_set", map[string]bool{"enabled": false})
	default:
		fmt.Fprintf(os.Stderr, "unknown workout subcommand: %s\nusage: planday workout <on|off>\n", args[0])
		os.Exit(1)
	}
}

func runTimer(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: planday timer <start|stop> [task_id]")
		os.Exit(1)
	}
	switch args[0] {
	case "start":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: planday timer start <task_id>")
			os.Exit(1)
		}
		dispatch("timer_start", map[string]string{"task_id": args[1]})
	case "stop":
		dispatch("timer_stop", nil)
	default:
		fmt.Fprintf(os.Stderr, "unknown timer subcommand: %s\nusage: planday timer <start|stop> [task_id]\n", args[0])
		os.Exit(1)
	}
}

// dispatch sends one intent and renders the daemon's resulting status.
func dispatch(command string, params any) {
	resp := send(command, params)
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "%s: [%s] %s\n", command, resp.Error.Code, resp.Error.Message)
		os.Exit(1)
	}
	var payload daemon.StatusPayload
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		fmt.Fprintf(os.Stderr, "%s: decode response: %v\n", command, err)
		os.Exit(1)
	}
	fmt.Print(daemon.FormatStatus(payload))
}

func send(command string, params any) *uds.Response {
	plannerDir, _ := mustLoad()
	client := uds.NewClient(filepath.Join(plannerDir, uds.DefaultSocketName))
	resp, err := client.SendCommand(command, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		os.Exit(1)
	}
	return resp
}

func mustLoad() (string, config.Config) {
	plannerDir := findPlannerDir()
	if plannerDir == "" {
		fmt.Fprintln(os.Stderr, "error: .planday/ directory not found. Run 'planday init' first.")
		os.Exit(1)
	}
	cfg, err := config.Load(plannerDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	return plannerDir, cfg
}

// findPlannerDir walks up from the working directory looking for .planday/.
func findPlannerDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".planday")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `planday %s — Daily task planner daemon

Usage: planday <command> [options]

Setup:
  init [dir]              Initialize .planday/ directory
  daemon                  Run daemon process (foreground)
  down                    Graceful daemon shutdown

Plan:
  status [--json]         Show today's plan and timer
  task toggle <id>        Toggle task completion
  task add                Append a new task
  task delete <id>        Delete a task
  task edit <id> <field> <value>
                          Edit task title or time (HH:MM)
  energy <low|medium|high>
                          Set energy level
  workout <on|off>        Toggle workout mode task set

Timer:
  timer start <id>        Start countdown for a task (toggles off if running)
  timer stop              Stop the countdown

Utilities:
  version                 Show version
  help                    Show this help

`, version)
}
