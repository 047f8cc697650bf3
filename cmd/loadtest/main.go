package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

func main() {
	orderBase := flag.String("order-base", "http://localhost:8080", "order service base url")
	invBase := flag.String("inv-base", "http://localhost:8081", "inventory service base url")
	sku := flag.String("sku", "SKU-1", "sku under test")
	seed := flag.Bool("seed", true, "seed stock before test")
	seedQty := flag.Int64("seed-qty", 50, "initial available qty")
	adminToken := flag.String("admin-token", "dev-admin-token", "admin token for seed endpoint")
	stockCheck := flag.Bool("stock", true, "check remaining stock after test")

	// 超卖测试参数：200 笔订单并发抢 50 件
	nOrders := flag.Int("orders", 200, "distinct orders")
	concurrency := flag.Int("c", 50, "max concurrency")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	if *seed {
		// 先重置库存，再发并发请求，避免残留数据干扰测试。
		if err := doPOST(client, *invBase+"/api/inventory/stock",
			map[string]any{"sku": *sku, "qty": *seedQty},
			map[string]string{"X-Admin-Token": *adminToken}); err != nil {
			panic(fmt.Sprintf("seed failed: %v", err))
		}
		fmt.Println("seed ok")
	}

	// 1) 不超卖测试：不同幂等键并发下单
	fmt.Printf("start oversell test: sku=%s orders=%d concurrency=%d\n", *sku, *nOrders, *concurrency)
	results := runCreate(client, *orderBase, *sku, *nOrders, *concurrency, false)
	printSummary("oversell", results)

	if *stockCheck {
		qty, err := getStock(client, *invBase, *sku)
		if err != nil {
			fmt.Println("stock check err:", err)
		} else {
			fmt.Println("final available qty:", qty)
		}
	}

	// 2) 幂等测试：同一个幂等键重复下单，应只产生一个订单
	fmt.Println("\nstart idempotency test: same key, 50 requests, concurrency 50")
	results2 := runCreate(client, *orderBase, *sku, 50, 50, true)
	printSummary("idempotency", results2)
	printDistinct("idempotency", results2)
}

func runCreate(client *http.Client, baseURL, sku string, total, concurrency int, sameKey bool) []Result {
	type item struct {
		SKU string `json:"sku"`
		Qty int64  `json:"qty"`
	}
	type req struct {
		Items []item `json:"items"`
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			key := fmt.Sprintf("loadtest-%d", idx)
			if sameKey {
				key = "loadtest-same-key"
			}
			results[idx] = createOnce(client, baseURL, req{Items: []item{{SKU: sku, Qty: 1}}}, key)
		}(i)
	}

	wg.Wait()
	return results
}

func createOnce(client *http.Client, baseURL string, body any, idemKey string) Result {
	b, _ := json.Marshal(body)
	httpReq, _ := http.NewRequest(http.MethodPost, baseURL+"/api/orders", bytes.NewReader(b))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idemKey)

	resp, err := client.Do(httpReq)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(respBody)}
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 400, 404, 429, 500, 503} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

// printDistinct 统计返回的不同订单 ID 数，幂等测试应恰好为 1。
func printDistinct(name string, results []Result) {
	ids := map[string]struct{}{}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		var out struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(r.Body), &out); err == nil && out.ID != "" {
			ids[out.ID] = struct{}{}
		}
	}
	fmt.Printf("[%s] distinct order ids: %d\n", name, len(ids))
}

// doPOST 发送 POST 请求（支持附加请求头）。
func doPOST(client *http.Client, url string, body any, headers map[string]string) error {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(http.MethodPost, url, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// getStock 查询库存服务的当前可用量，用于压测后校验是否出现超卖。
func getStock(client *http.Client, baseURL, sku string) (int64, error) {
	resp, err := client.Get(baseURL + "/api/inventory/stock/" + sku)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Code int `json:"code"`
		Data struct {
			AvailableQty int64 `json:"available_qty"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return 0, err
	}
	return out.Data.AvailableQty, nil
}
