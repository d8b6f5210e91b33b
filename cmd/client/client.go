package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"

	"skoll/internal/engine"
	skollnet "skoll/internal/net"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'summary']")

	// Order parameters
	symbol := flag.String("symbol", "AAPL", "Instrument symbol")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'limit' or 'market'")
	price := flag.String("price", "100.0", "Limit price (decimal literal)")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	// Cancel parameters
	orderID := flag.Uint64("order", 0, "Identifier of the order to cancel")

	flag.Parse()

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s\n", *serverAddr)

	go readReports(conn)

	side := engine.Buy
	if strings.ToLower(*sideStr) == "sell" {
		side = engine.Sell
	}
	kind := engine.Limit
	wirePrice := *price
	if strings.ToLower(*typeStr) == "market" {
		kind = engine.AtMarket
		wirePrice = ""
	}

	switch strings.ToLower(*action) {
	case "place":
		for _, qty := range parseQuantities(*qtyStr) {
			msg := skollnet.EncodeNewOrder(side, kind, *symbol, wirePrice, qty)
			if _, err := conn.Write(msg); err != nil {
				log.Printf("Failed to place order (qty %d): %v", qty, err)
				continue
			}
			fmt.Printf("-> Sent %s %s order: %s %d @ %s\n",
				strings.ToUpper(*sideStr), *typeStr, *symbol, qty, wirePrice)
		}

	case "cancel":
		if *orderID == 0 {
			log.Fatal("Error: -order is required for cancellation")
		}
		if _, err := conn.Write(skollnet.EncodeCancelOrder(*symbol, *orderID)); err != nil {
			log.Fatalf("Failed to send cancel request: %v", err)
		}
		fmt.Printf("-> Sent cancel request for order %d\n", *orderID)

	case "summary":
		if _, err := conn.Write(skollnet.EncodeSummary(*symbol)); err != nil {
			log.Fatalf("Failed to send summary request: %v", err)
		}
		fmt.Printf("-> Requested summary for %s\n", *symbol)

	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

// parseQuantities splits a comma-separated string into a slice of uint64.
func parseQuantities(input string) []uint64 {
	parts := strings.Split(input, ",")
	var result []uint64
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("Warning: invalid quantity %q, skipping.", p)
		}
	}
	return result
}

// readReports continuously reads and prints reports from the server.
func readReports(conn net.Conn) {
	for {
		report, err := skollnet.ReadReport(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("Connection lost: %v", err)
			}
			return
		}

		switch report.Kind {
		case skollnet.PlacementReport:
			fmt.Printf("\n[PLACED] order %d resting, qty %d\n", report.OrderID, report.Quantity)
		case skollnet.ExecutionReport:
			fmt.Printf("\n[EXECUTION] order %d filled %d @ %s (vs order %d)\n",
				report.OrderID, report.Quantity, report.Price, report.CounterOrderID)
		case skollnet.CancelReport:
			fmt.Printf("\n[CANCELLED] order %d\n", report.OrderID)
		case skollnet.RejectionReport:
			fmt.Printf("\n[REJECTED] %s\n", report.Text)
		case skollnet.SummaryReport:
			fmt.Printf("\n[BOOK] %s\n", report.Text)
		default:
			fmt.Printf("\n[UNKNOWN REPORT] kind %d\n", report.Kind)
		}
	}
}
