package main

import (
	"fmt"
	"log"
	"time"

	"neurogeo/pkg/client"
	"neurogeo/pkg/common"
)

func main() {
	fmt.Println("Connecting to NeuroGeo...")
	cli, err := client.Dial("localhost:9090")
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer cli.Close()

	// A few Melbourne landmarks as (lat, lng).
	points := []client.Point{
		common.NewPoint(1, -37.8183, 144.9671), // Flinders Street Station
		common.NewPoint(2, -37.8102, 144.9628), // State Library
		common.NewPoint(3, -37.8304, 144.9796), // Botanic Gardens
		common.NewPoint(4, -37.8136, 144.9631), // Bourke Street Mall
	}

	start := time.Now()
	if err := cli.BatchInsert(points); err != nil {
		log.Fatalf("BatchInsert failed: %v", err)
	}
	fmt.Printf("Indexed %d points in %v\n", len(points), time.Since(start))

	p, ok, err := cli.Get(-37.8102, 144.9628)
	if err != nil {
		log.Fatalf("Get failed: %v", err)
	}
	fmt.Printf("Get: %v (found=%v)\n", p, ok)

	start = time.Now()
	nn, _, err := cli.Nearest([2]float64{-37.8150, 144.9650})
	if err != nil {
		log.Fatalf("Nearest failed: %v", err)
	}
	fmt.Printf("Nearest to CBD centre: %v (in %v)\n", nn, time.Since(start))

	within, err := cli.Radius([2]float64{-37.8150, 144.9650}, 0.01)
	if err != nil {
		log.Fatalf("Radius failed: %v", err)
	}
	fmt.Printf("Within 0.01 deg: %d points\n", len(within))

	rows, err := cli.Query("SELECT * FROM points WHERE WITHIN(-37.82, 144.96, -37.81, 144.97)")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	fmt.Printf("Query returned %v\n", rows)
}
