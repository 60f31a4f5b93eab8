// failovertest is a tool to verify failover behavior of the dispatcher
// by driving its HTTP API against a running instance.
//
// Usage:
//
//	go run failovertest.go -api http://localhost:8080 -cache demo
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

func main() {
	var (
		apiURL   = flag.String("api", "http://localhost:8080", "Dispatcher API URL")
		cache    = flag.String("cache", "demo", "Cache name to exercise")
		requests = flag.Int("requests", 20, "Requests per phase")
	)
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	fmt.Println(colorCyan + "━━━ FAILOVER DISPATCHER TEST ━━━" + colorReset)
	fmt.Println()

	// PHASE 1: Write and read back through the dispatcher
	fmt.Println(colorBlue + "━━━ PHASE 1: Write / Read ━━━" + colorReset)

	served := make(map[string]int)
	for i := 0; i < *requests; i++ {
		key := fmt.Sprintf("key-%d", i)
		cluster, status, err := send(client, http.MethodPost,
			fmt.Sprintf("%s/kv/%s/%s", *apiURL, *cache, key), fmt.Sprintf("value-%d", i))
		if err != nil {
			fmt.Printf(colorRed+"  Request %d: ERROR - %v\n"+colorReset, i+1, err)
			continue
		}
		if status >= 500 {
			fmt.Printf(colorRed+"  Request %d: Status=%d\n"+colorReset, i+1, status)
			continue
		}
		served[cluster]++
	}

	fmt.Println("\n  Serving cluster distribution:")
	for cluster, count := range served {
		fmt.Printf("    %s → %d requests\n", cluster, count)
	}
	if len(served) == 0 {
		fmt.Println(colorRed + "  ✗ Nothing answered! Is the dispatcher running?" + colorReset)
		os.Exit(1)
	}
	fmt.Println(colorGreen + "  ✓ Writes accepted" + colorReset)
	fmt.Println()

	// PHASE 2: Breaker state
	fmt.Println(colorBlue + "━━━ PHASE 2: Breaker State ━━━" + colorReset)

	state, err := getJSON(client, fmt.Sprintf("%s/failover/%s", *apiURL, *cache))
	if err != nil {
		fmt.Printf(colorYellow+"  Could not fetch breaker state: %v\n"+colorReset, err)
	} else {
		failedOver, _ := state["failed_over"].(bool)
		stateName, _ := state["state"].(string)
		if failedOver {
			fmt.Printf(colorRed+"  Breaker: %s (serving from backup)\n"+colorReset, stateName)
		} else {
			fmt.Printf(colorGreen+"  Breaker: %s (serving from primary)\n"+colorReset, stateName)
		}
	}
	fmt.Println()

	// PHASE 3: Metrics
	fmt.Println(colorBlue + "━━━ PHASE 3: Metrics ━━━" + colorReset)

	metrics, err := getJSON(client, *apiURL+"/metrics")
	if err != nil {
		fmt.Printf(colorYellow+"  Could not fetch metrics: %v\n"+colorReset, err)
	} else if clusters, ok := metrics["clusters"].(map[string]interface{}); ok {
		for name, data := range clusters {
			if cm, ok := data.(map[string]interface{}); ok {
				reqs := int(cm["requests"].(float64))
				fmt.Printf("    %s → %d requests\n", name, reqs)
			}
		}
	}
	fmt.Println()

	fmt.Println(colorCyan + "━━━ DONE ━━━" + colorReset)
}

func send(client *http.Client, method, url, body string) (cluster string, status int, err error) {
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		return "", 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.Header.Get("X-Served-By"), resp.StatusCode, nil
}

func getJSON(client *http.Client, url string) (map[string]interface{}, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
