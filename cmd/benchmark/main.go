package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"neurogeo/pkg/client"
	"neurogeo/pkg/common"
	"neurogeo/pkg/core/learned"
	"neurogeo/pkg/core/memory"
)

type Point = common.Point[float64]

var (
	numPoints  int
	numQueries int
	radius     float64
	seed       int64

	httpAddr string
	tcpAddr  string
	numReq   int
)

var rootCmd = &cobra.Command{
	Use:   "neurogeo-bench",
	Short: "Benchmarks for the learned spatial index.",
}

var algoCmd = &cobra.Command{
	Use:   "algo",
	Short: "Compare the learned hash map with a B-tree on synthetic uniform points.",
	RunE:  runAlgo,
}

var protocolCmd = &cobra.Command{
	Use:   "protocol",
	Short: "Compare JSON over HTTP with the binary TCP protocol against a running server.",
	RunE:  runProtocol,
}

func init() {
	algoCmd.Flags().IntVarP(&numPoints, "points", "n", 100000, "Number of points to index")
	algoCmd.Flags().IntVarP(&numQueries, "queries", "q", 10000, "Number of queries per operation")
	algoCmd.Flags().Float64Var(&radius, "radius", 0.01, "Radius for radius queries, in units of the [0,1) square")
	algoCmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")

	protocolCmd.Flags().StringVar(&httpAddr, "http", "http://localhost:8080", "HTTP API base URL")
	protocolCmd.Flags().StringVar(&tcpAddr, "tcp", "localhost:9090", "TCP server address")
	protocolCmd.Flags().IntVar(&numReq, "n", 5000, "Number of requests per run")

	rootCmd.AddCommand(algoCmd, protocolCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func uniformPoints(rng *rand.Rand, n int) []Point {
	ps := make([]Point, n)
	for i := range ps {
		ps[i] = common.NewPoint(i, rng.Float64(), rng.Float64())
	}
	return ps
}

func perOp(d time.Duration, n int) string {
	if n == 0 {
		return "-"
	}
	return (d / time.Duration(n)).String()
}

func row(op string, learnedTime, btreeTime time.Duration, n int) {
	ratio := 0.0
	if learnedTime > 0 {
		ratio = btreeTime.Seconds() / learnedTime.Seconds()
	}
	fmt.Printf("%-16s %14s %14s %9.2fx\n", op, perOp(learnedTime, n), perOp(btreeTime, n), ratio)
}

func runAlgo(cmd *cobra.Command, args []string) error {
	if numPoints <= 0 || numQueries <= 0 {
		return errors.New("--points and --queries must be positive")
	}
	rng := rand.New(rand.NewSource(seed))
	ps := uniformPoints(rng, numPoints)
	probes := make([]Point, numQueries)
	for i := range probes {
		probes[i] = ps[rng.Intn(len(ps))]
	}
	queries := uniformPoints(rng, numQueries)

	fmt.Printf("NeuroGeo Algorithm Benchmark (%s points, %s queries)\n",
		humanize.Comma(int64(numPoints)), humanize.Comma(int64(numQueries)))
	fmt.Println("---------------------------------------------------------------")
	fmt.Printf("%-16s %14s %14s %10s\n", "operation", "learned/op", "btree/op", "speedup")

	m := learned.New[float64]()
	batch := append([]Point(nil), ps...)
	start := time.Now()
	if err := m.BatchInsert(batch); err != nil {
		return err
	}
	learnedBuild := time.Since(start)

	bt := memory.NewSortedIndex(32)
	start = time.Now()
	for _, p := range ps {
		bt.Put(p)
	}
	row("BatchInsert", learnedBuild, time.Since(start), numPoints)

	start = time.Now()
	for _, p := range probes {
		m.Get(p.X, p.Y)
	}
	learnedGet := time.Since(start)
	start = time.Now()
	for _, p := range probes {
		bt.Get(p.X, p.Y)
	}
	row("Get", learnedGet, time.Since(start), numQueries)

	// The B-tree has no proximity ordering on y, so its nearest query is
	// exhaustive. Cap it to keep the run short.
	nnQueries := queries
	if len(nnQueries) > 500 {
		nnQueries = nnQueries[:500]
	}
	start = time.Now()
	for _, q := range nnQueries {
		m.NearestNeighbor([2]float64{q.X, q.Y})
	}
	learnedNN := time.Since(start)
	start = time.Now()
	for _, q := range nnQueries {
		bt.Nearest([2]float64{q.X, q.Y})
	}
	row("NearestNeighbor", learnedNN, time.Since(start), len(nnQueries))

	found := 0
	start = time.Now()
	for _, q := range queries {
		res, _ := m.RadiusRange([2]float64{q.X, q.Y}, radius)
		found += len(res)
	}
	learnedRadius := time.Since(start)
	baselineFound := 0
	start = time.Now()
	for _, q := range queries {
		for _, p := range bt.Range([2]float64{q.X - radius, q.Y - radius}, [2]float64{q.X + radius, q.Y + radius}) {
			if common.Euclidean(q.X, q.Y, p.X, p.Y) <= radius {
				baselineFound++
			}
		}
	}
	row("RadiusRange", learnedRadius, time.Since(start), numQueries)
	if found != baselineFound {
		fmt.Printf("WARNING: radius hits differ (learned=%d btree=%d)\n", found, baselineFound)
	}

	fmt.Println("---------------------------------------------------------------")
	fmt.Printf("buckets=%s occupied=%s axis=%s avg radius hits=%.1f\n",
		humanize.Comma(int64(m.Capacity())), humanize.Comma(int64(m.Occupied())),
		m.Axis(), float64(found)/float64(numQueries))
	return nil
}

func runProtocol(cmd *cobra.Command, args []string) error {
	fmt.Printf("NeuroGeo Protocol Benchmark (N=%d)\n", numReq)
	fmt.Printf("  HTTP=%s  TCP=%s\n", httpAddr, tcpAddr)
	fmt.Println("---------------------------------------------------")

	fmt.Println(">> Starting HTTP Benchmark (JSON over HTTP 1.1)...")
	httpDuration, err := runHTTPBenchmark(httpAddr, numReq)
	if err != nil {
		return err
	}
	fmt.Printf("   HTTP Time: %v | QPS: %.0f\n\n", httpDuration, float64(numReq)/httpDuration.Seconds())

	fmt.Println(">> Starting TCP Benchmark (Binary Protocol)...")
	tcpDuration, err := runTCPBenchmark(tcpAddr, numReq)
	if err != nil {
		return err
	}
	fmt.Printf("   TCP  Time: %v | QPS: %.0f\n", tcpDuration, float64(numReq)/tcpDuration.Seconds())

	fmt.Println("---------------------------------------------------")
	fmt.Printf("Conclusion: TCP is %.2fx faster than HTTP!\n", httpDuration.Seconds()/tcpDuration.Seconds())
	return nil
}

func runHTTPBenchmark(base string, n int) (time.Duration, error) {
	rng := rand.New(rand.NewSource(seed))
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 100,
		},
	}

	start := time.Now()
	for i := 0; i < n; i++ {
		body, _ := json.Marshal(map[string]interface{}{
			"id": i,
			"x":  rng.Float64() * 1000,
			"y":  rng.Float64() * 1000,
		})

		resp, err := httpClient.Post(base+"/api/insert", "application/json", bytes.NewReader(body))
		if err != nil {
			return 0, errors.Wrap(err, "HTTP request failed")
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	return time.Since(start), nil
}

func runTCPBenchmark(addr string, n int) (time.Duration, error) {
	rng := rand.New(rand.NewSource(seed + 1))
	cli, err := client.Dial(addr)
	if err != nil {
		return 0, errors.Wrap(err, "TCP connect failed")
	}
	defer cli.Close()

	start := time.Now()
	for i := 0; i < n; i++ {
		p := common.NewPoint(n+i, rng.Float64()*1000, rng.Float64()*1000)
		if _, _, err := cli.Insert(p); err != nil {
			return 0, errors.Wrap(err, "TCP insert failed")
		}
	}
	return time.Since(start), nil
}
