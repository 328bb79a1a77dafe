package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
)

// User represents the structure of a user document to insert
type User struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Email string `json:"email"`
}

// generateRandomName generates a random 6-letter name
func generateRandomName() string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	name := make([]byte, 6)
	for i := range name {
		name[i] = letters[rand.Intn(len(letters))]
	}
	// Capitalize first letter
	name[0] = name[0] - 32
	return string(name)
}

// generateRandomAge generates a random age between 18 and 99
func generateRandomAge() int {
	return rand.Intn(82) + 18
}

// insertUsers posts a single user, or an array when the batch holds more than one
func insertUsers(client *http.Client, baseURL, collection string, users []User) error {
	var payload interface{} = users
	if len(users) == 1 {
		payload = users[0]
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/documents", baseURL, collection)
	resp, err := client.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("unexpected status code: %d %s", resp.StatusCode, errResp.Message)
	}

	return nil
}

// countUsers asks the server how many documents the collection holds
func countUsers(client *http.Client, baseURL, collection string) (int, error) {
	url := fmt.Sprintf("%s/collections/%s/count", baseURL, collection)
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var result struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

func main() {
	flagSet := flag.NewFlagSet("insert_docs_load", flag.ExitOnError)
	numUsers := flagSet.IntP("users", "n", 1000, "Number of users to insert")
	serverURL := flagSet.StringP("url", "u", "http://localhost:8080", "Server base URL")
	collection := flagSet.StringP("collection", "c", "users", "Target collection")
	batchSize := flagSet.IntP("batch", "b", 1, "Users per request (max 1000)")
	_ = flagSet.Parse(os.Args[1:])

	if *numUsers <= 0 {
		fmt.Println("Error: Number of users must be greater than 0")
		os.Exit(1)
	}
	if *batchSize <= 0 || *batchSize > 1000 {
		fmt.Println("Error: Batch size must be between 1 and 1000")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}

	fmt.Printf("Starting load test: inserting %d users into %s at %s (batch %d)\n",
		*numUsers, *collection, *serverURL, *batchSize)
	fmt.Println("Press Ctrl+C to stop early")

	startTime := time.Now()
	successCount := 0
	errorCount := 0

	reportInterval := max(1, *numUsers/10)
	nextReport := reportInterval

	for sent := 0; sent < *numUsers; {
		n := min(*batchSize, *numUsers-sent)
		batch := make([]User, n)
		for i := range batch {
			name := generateRandomName()
			batch[i] = User{
				Name:  name,
				Age:   generateRandomAge(),
				Email: fmt.Sprintf("%s@example.com", strings.ToLower(name)),
			}
		}

		if err := insertUsers(client, *serverURL, *collection, batch); err != nil {
			errorCount += n
			fmt.Printf("Error inserting users %d-%d: %v\n", sent+1, sent+n, err)
		} else {
			successCount += n
		}
		sent += n

		if sent >= nextReport || sent == *numUsers {
			elapsed := time.Since(startTime)
			rate := float64(sent) / elapsed.Seconds()
			fmt.Printf("Progress: %d/%d users (%.1f%%) - Rate: %.1f users/sec - Success: %d, Errors: %d\n",
				sent, *numUsers, float64(sent)/float64(*numUsers)*100, rate, successCount, errorCount)
			nextReport = sent + reportInterval
		}
	}

	totalTime := time.Since(startTime)
	averageRate := float64(*numUsers) / totalTime.Seconds()

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("LOAD TEST COMPLETE")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Total users attempted: %d\n", *numUsers)
	fmt.Printf("Successful inserts:    %d\n", successCount)
	fmt.Printf("Failed inserts:        %d\n", errorCount)
	fmt.Printf("Success rate:          %.2f%%\n", float64(successCount)/float64(*numUsers)*100)
	fmt.Printf("Total time:            %v\n", totalTime)
	fmt.Printf("Average rate:          %.2f users/sec\n", averageRate)
	fmt.Printf("Average time per user: %v\n", totalTime/time.Duration(*numUsers))

	if count, err := countUsers(client, *serverURL, *collection); err == nil {
		fmt.Printf("Documents in %s:     %d\n", *collection, count)
	}

	if errorCount > 0 {
		fmt.Printf("\nWarning: %d errors occurred during the load test\n", errorCount)
		os.Exit(1)
	}

	fmt.Println("\nLoad test completed successfully!")
}
