// Package main runs end-to-end checks against a running API server.
//
// Start the server with USE_MEMORY_CALENDAR=true and ADMIN_JWT_SECRET set; the
// log sender stands in for Twilio when its credentials are absent.
//
// Usage:
//
//	ADMIN_JWT_SECRET=... API_BASE_URL=... go run scripts/e2e/run_e2e.go [scenario-name]
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	httpmiddleware "github.com/wolfman30/wellness-commerce-bot/internal/http/middleware"
)

const (
	maxWaitSecs  = 20
	pollInterval = time.Second
)

var (
	apiBase      string
	storeSecret  string
	token        string
	testPhone    string
	offeredSlots []string
	httpClient   = &http.Client{Timeout: 15 * time.Second}
)

// ---------------------------------------------------------------------------
// Scenario definition
// ---------------------------------------------------------------------------

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func do(req *http.Request) (int, map[string]interface{}, error) {
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)
	return resp.StatusCode, body, nil
}

func adminGet(path string) (int, map[string]interface{}, error) {
	req, _ := http.NewRequest(http.MethodGet, apiBase+path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return do(req)
}

func postOrder(payload string) (int, map[string]interface{}, error) {
	req, _ := http.NewRequest(http.MethodPost, apiBase+"/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-WC-Webhook-Delivery-ID", uuid.NewString())
	if storeSecret != "" {
		mac := hmac.New(sha256.New, []byte(storeSecret))
		mac.Write([]byte(payload))
		req.Header.Set("X-WC-Webhook-Signature", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	}
	return do(req)
}

func sendWhatsApp(text string) (int, error) {
	form := url.Values{
		"From":       {"whatsapp:+" + testPhone},
		"Body":       {text},
		"MessageSid": {"SM" + strings.ReplaceAll(uuid.NewString(), "-", "")},
	}
	req, _ := http.NewRequest(http.MethodPost, apiBase+"/incoming", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	status, _, err := do(req)
	return status, err
}

// waitForFollowup polls /admin/followups until kind is pending for userID.
func waitForFollowup(userID, kind string) bool {
	deadline := time.Now().Add(maxWaitSecs * time.Second)
	for time.Now().Before(deadline) {
		_, body, err := adminGet("/admin/followups")
		if err == nil {
			items, _ := body["followups"].([]interface{})
			for _, it := range items {
				m, _ := it.(map[string]interface{})
				if m["user_id"] == userID && m["kind"] == kind {
					return true
				}
			}
		}
		time.Sleep(pollInterval)
	}
	return false
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func scenarioHealth(t *T) {
	req, _ := http.NewRequest(http.MethodGet, apiBase+"/health", nil)
	status, body, err := do(req)
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("health returns 200", status == http.StatusOK)
	t.check("health reports ok", body["status"] == "ok")

	req, _ = http.NewRequest(http.MethodGet, apiBase+"/webhook", nil)
	status, _, err = do(req)
	t.check("storefront liveness returns 200", err == nil && status == http.StatusOK)
}

func scenarioEbookOrder(t *T) {
	buyer := testPhone[:len(testPhone)-1] + "9"
	if buyer == testPhone {
		buyer = testPhone[:len(testPhone)-1] + "8"
	}
	payload := fmt.Sprintf(`{"billing":{"phone":"+%s","first_name":"E2E"},"line_items":[{"name":"Libro El Método"}]}`, buyer)
	status, body, err := postOrder(payload)
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("ebook order returns 200", status == http.StatusOK)
	t.check("ebook order acknowledged", body["status"] == "ok")
	t.check("day-6 campaign scheduled", waitForFollowup(buyer, "day6"))
}

func scenarioBadOrder(t *T) {
	status, body, err := postOrder(`{"billing":{"first_name":"E2E"}}`)
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("order without phone returns 400", status == http.StatusBadRequest)
	t.check("error detail present", body["detail"] != nil)
}

func scenarioTherapyInterest(t *T) {
	status, err := sendWhatsApp("Quiero información de la terapia")
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("inbound accepted", status == http.StatusOK)
	t.check("reminder scheduled", waitForFollowup(testPhone, "reminder"))
	t.check("no-conversion offer scheduled", waitForFollowup(testPhone, "no_conversion"))

	status, err = sendWhatsApp("hola")
	t.check("second inbound accepted", err == nil && status == http.StatusOK)
}

func scenarioSlotPreview(t *T) {
	status, body, err := adminGet("/admin/slots?days=7&max=10")
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("slot preview returns 200", status == http.StatusOK)
	raw, _ := body["slots"].([]interface{})
	offeredSlots = offeredSlots[:0]
	for _, s := range raw {
		if str, ok := s.(string); ok {
			offeredSlots = append(offeredSlots, str)
		}
	}
	t.check("at most 10 slots", len(offeredSlots) <= 10)
	t.check("memory calendar offers slots", len(offeredSlots) > 0)
}

func scenarioAdminBooking(t *T) {
	if len(offeredSlots) == 0 {
		scenarioSlotPreview(t)
	}
	if len(offeredSlots) == 0 {
		t.fatalf("no slot to book")
		return
	}
	slot := offeredSlots[len(offeredSlots)-1]
	payload, _ := json.Marshal(map[string]string{"user_id": testPhone, "slot": slot, "note": "e2e"})
	req, _ := http.NewRequest(http.MethodPost, apiBase+"/admin/bookings", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	status, body, err := do(req)
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("admin booking returns 201", status == http.StatusCreated)
	t.check("event id returned", body["event_id"] != nil && body["event_id"] != "")

	_, body, err = adminGet("/admin/slots?days=7&max=100")
	booked := false
	if err == nil {
		raw, _ := body["slots"].([]interface{})
		for _, s := range raw {
			if s == slot {
				booked = true
			}
		}
	}
	t.check("booked slot no longer offered", err == nil && !booked)
}

func scenarioAdminAuth(t *T) {
	req, _ := http.NewRequest(http.MethodGet, apiBase+"/admin/followups", nil)
	status, _, err := do(req)
	t.check("admin without token returns 401", err == nil && status == http.StatusUnauthorized)
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	jwtSecret := os.Getenv("ADMIN_JWT_SECRET")
	if apiBase == "" || jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL and ADMIN_JWT_SECRET required")
		os.Exit(1)
	}
	storeSecret = os.Getenv("WOOCOMMERCE_WEBHOOK_SECRET")
	testPhone = fmt.Sprintf("52155%08d", time.Now().UnixNano()%100000000)

	var err error
	token, err = httpmiddleware.IssueAdminToken(jwtSecret, "e2e", time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: issue token: %v\n", err)
		os.Exit(1)
	}

	scenarios := []scenario{
		{"health", scenarioHealth},
		{"admin-auth", scenarioAdminAuth},
		{"ebook-order", scenarioEbookOrder},
		{"bad-order", scenarioBadOrder},
		{"therapy-interest", scenarioTherapyInterest},
		{"slot-preview", scenarioSlotPreview},
		{"admin-booking", scenarioAdminBooking},
	}

	// Filter by name if argument provided
	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	scenarioResults := make([]string, 0)

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "PASS"
		if t.failed > 0 {
			status = "FAIL"
		}
		scenarioResults = append(scenarioResults, fmt.Sprintf("  %s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Println("SUMMARY")
	fmt.Printf("========================================\n")
	for _, r := range scenarioResults {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)

	if totalFailed > 0 {
		fmt.Println("\nSOME CHECKS FAILED")
		os.Exit(1)
	}
	fmt.Println("\nALL CHECKS PASSED")
}
