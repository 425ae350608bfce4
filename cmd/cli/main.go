package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"neurogeo/pkg/client"
)

const Prompt = "geo> "

var serverAddr string

var rootCmd = &cobra.Command{
	Use:   "neurogeo-cli",
	Short: "Interactive shell for a NeuroGeo server.",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&serverAddr, "addr", "localhost:9090", "NeuroGeo TCP Server Address")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	fmt.Printf("NeuroGeo CLI (Target: %s)\n", serverAddr)
	fmt.Println("Connecting...")

	cli, err := client.Dial(serverAddr)
	if err != nil {
		fmt.Println("Tip: Ensure the server is running (e.g. go run ./cmd/server serve).")
		return err
	}
	defer cli.Close()
	fmt.Println("Connected! Type 'help' for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(Prompt)
		if !scanner.Scan() {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		switch strings.ToLower(parts[0]) {
		case "insert", "put":
			handleInsert(cli, parts)
		case "get":
			handleGet(cli, parts)
		case "remove", "del", "rm":
			handleRemove(cli, parts)
		case "range":
			handleRange(cli, parts)
		case "radius":
			handleRadius(cli, parts)
		case "nearest", "nn":
			handleNearest(cli, parts)
		case "knn":
			handleKNearest(cli, parts)
		case "select":
			handleQuery(cli, line)
		case "help":
			printHelp()
		case "exit", "quit":
			fmt.Println("Bye!")
			return nil
		default:
			fmt.Printf("Unknown command: '%s'. Type 'help'.\n", parts[0])
		}
	}
}

// floats parses parts[1:] as exactly n numbers.
func floats(parts []string, n int, usage string) ([]float64, bool) {
	if len(parts) != n+1 {
		fmt.Println("Usage: " + usage)
		return nil, false
	}
	vals := make([]float64, n)
	for i := range vals {
		v, err := strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			fmt.Printf("Error: '%s' is not a number\n", parts[i+1])
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

func handleInsert(cli *client.Client, parts []string) {
	v, ok := floats(parts, 3, "insert <id> <x> <y>")
	if !ok {
		return
	}

	start := time.Now()
	old, replaced, err := cli.Insert(client.Point{ID: int(v[0]), X: v[1], Y: v[2]})
	duration := time.Since(start)

	switch {
	case err != nil:
		fmt.Printf("Error: %v\n", err)
	case replaced:
		fmt.Printf("OK, replaced %v (%v)\n", old, duration)
	default:
		fmt.Printf("OK (%v)\n", duration)
	}
}

func handleGet(cli *client.Client, parts []string) {
	v, ok := floats(parts, 2, "get <x> <y>")
	if !ok {
		return
	}

	start := time.Now()
	p, found, err := cli.Get(v[0], v[1])
	duration := time.Since(start)

	switch {
	case err != nil:
		fmt.Printf("Error: %v\n", err)
	case !found:
		fmt.Printf("(none) (%v)\n", duration)
	default:
		fmt.Printf("%v (%v)\n", p, duration)
	}
}

func handleRemove(cli *client.Client, parts []string) {
	v, ok := floats(parts, 2, "remove <x> <y>")
	if !ok {
		return
	}

	start := time.Now()
	p, found, err := cli.Remove(v[0], v[1])
	duration := time.Since(start)

	switch {
	case err != nil:
		fmt.Printf("Error: %v\n", err)
	case !found:
		fmt.Printf("(none) (%v)\n", duration)
	default:
		fmt.Printf("Removed %v (%v)\n", p, duration)
	}
}

func handleRange(cli *client.Client, parts []string) {
	v, ok := floats(parts, 4, "range <x1> <y1> <x2> <y2>")
	if !ok {
		return
	}
	start := time.Now()
	ps, err := cli.Range([2]float64{v[0], v[1]}, [2]float64{v[2], v[3]})
	printPoints(ps, err, time.Since(start))
}

func handleRadius(cli *client.Client, parts []string) {
	v, ok := floats(parts, 3, "radius <x> <y> <r>")
	if !ok {
		return
	}
	start := time.Now()
	ps, err := cli.Radius([2]float64{v[0], v[1]}, v[2])
	printPoints(ps, err, time.Since(start))
}

func handleNearest(cli *client.Client, parts []string) {
	v, ok := floats(parts, 2, "nearest <x> <y>")
	if !ok {
		return
	}

	start := time.Now()
	p, found, err := cli.Nearest([2]float64{v[0], v[1]})
	duration := time.Since(start)

	switch {
	case err != nil:
		fmt.Printf("Error: %v\n", err)
	case !found:
		fmt.Printf("(empty) (%v)\n", duration)
	default:
		fmt.Printf("%v (%v)\n", p, duration)
	}
}

func handleKNearest(cli *client.Client, parts []string) {
	v, ok := floats(parts, 3, "knn <x> <y> <k>")
	if !ok {
		return
	}
	start := time.Now()
	ps, err := cli.KNearest([2]float64{v[0], v[1]}, int(v[2]))
	printPoints(ps, err, time.Since(start))
}

func handleQuery(cli *client.Client, line string) {
	start := time.Now()
	ps, err := cli.Query(line)
	printPoints(ps, err, time.Since(start))
}

func printPoints(ps []client.Point, err error, duration time.Duration) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Found %d points (%v):\n", len(ps), duration)
	for i, p := range ps {
		if i >= 20 {
			fmt.Printf("... and %d more\n", len(ps)-20)
			break
		}
		fmt.Printf("  %v\n", p)
	}
}

func printHelp() {
	fmt.Println(`
Commands:
  insert <id> <x> <y>          Insert/replace a point
  get <x> <y>                  Exact lookup
  remove <x> <y>               Remove a point
  range <x1> <y1> <x2> <y2>    Points inside the box
  radius <x> <y> <r>           Points within distance r
  nearest <x> <y>              Closest point
  knn <x> <y> <k>              k closest points
  SELECT ...                   Query, e.g. SELECT * FROM points NEAREST(1, 2) LIMIT 3
  exit                         Exit CLI
	`)
}
