package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "profile":
		handleProfile(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: profilehub auth <register|login|logout|who|change-password|delete>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "register":
		registerAccount(args[1:])
	case "login":
		login(args[1:])
	case "logout":
		logout()
	case "who":
		whoAmI()
	case "change-password":
		changePassword(args[1:])
	case "delete":
		deleteAccount(args[1:])
	default:
		fmt.Printf("unknown auth command: %s\n", subCmd)
	}
}

func handleProfile(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: profilehub profile <show|update|avatar>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "show":
		showProfile()
	case "update":
		updateProfile(args[1:])
	case "avatar":
		uploadAvatar(args[1:])
	default:
		fmt.Printf("unknown profile command: %s\n", subCmd)
	}
}

// Auth commands
func registerAccount(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *username == "" || *email == "" || *password == "" {
		fmt.Println("Error: username, email, and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"username":        *username,
		"email":           *email,
		"password":        *password,
		"passwordConfirm": *password,
	}

	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/register", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 201 {
		fmt.Printf("✓ Account registered: %s\n", *username)
		if token, ok := result["token"].(string); ok {
			saveToken(token)
		}
	} else {
		fmt.Printf("✗ Registration failed: %v\n", result)
	}
}

func login(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *username == "" || *password == "" {
		fmt.Println("Error: username and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"username": *username, "password": *password}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/login", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Printf("✓ Logged in as: %s\n", *username)
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result)
	}
}

func logout() {
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	token := loadToken()
	if token == "" {
		fmt.Println("Not logged in")
		return
	}
	fmt.Printf("✓ Logged in (token: %s...)\n", tokenPreview(token))
}

func changePassword(args []string) {
	fs := flag.NewFlagSet("change-password", flag.ExitOnError)
	current := fs.String("current", "", "current password")
	next := fs.String("new", "", "new password")

	fs.Parse(args)

	if *current == "" || *next == "" {
		fmt.Println("Error: current and new passwords are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"currentPassword":    *current,
		"newPassword":        *next,
		"newPasswordConfirm": *next,
	}
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", getAPIURL()+"/auth/change-password", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
		}
		fmt.Println("✓ Password changed")
	} else {
		fmt.Printf("✗ Password change failed: %v\n", result)
	}
}

func deleteAccount(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	yes := fs.Bool("yes", false, "skip confirmation")

	fs.Parse(args)

	if !*yes {
		fmt.Println("This permanently removes the account and its profile.")
		fmt.Println("Re-run with -yes to confirm.")
		return
	}

	req, _ := http.NewRequest("DELETE", getAPIURL()+"/account", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		os.Remove(tokenFile())
		fmt.Println("✓ Account deleted")
	} else {
		fmt.Printf("✗ Account deletion failed: %v\n", result)
	}
}

// Profile commands
func showProfile() {
	req, _ := http.NewRequest("GET", getAPIURL()+"/profile", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		var result map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&result)
		fmt.Printf("✗ Failed to load profile: %v\n", result)
		return
	}

	var profile map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&profile)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tVALUE")
	for _, field := range []string{"bio", "birthDate", "location", "avatarUrl"} {
		fmt.Fprintf(w, "%s\t%v\n", field, profile[field])
	}
	w.Flush()
}

func updateProfile(args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	bio := fs.String("bio", "", "short biography (max 500 characters)")
	birthDate := fs.String("birth-date", "", "birth date (YYYY-MM-DD)")
	location := fs.String("location", "", "location (max 30 characters)")

	fs.Parse(args)

	payload := map[string]string{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bio":
			payload["bio"] = *bio
		case "birth-date":
			payload["birthDate"] = *birthDate
		case "location":
			payload["location"] = *location
		}
	})
	if len(payload) == 0 {
		fmt.Println("Error: at least one of -bio, -birth-date, -location is required")
		fs.PrintDefaults()
		return
	}

	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest("PUT", getAPIURL()+"/profile", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		fmt.Println("✓ Profile updated")
	} else {
		fmt.Printf("✗ Profile update failed: %v\n", result)
	}
}

func uploadAvatar(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: profilehub profile avatar <image-file>")
		return
	}

	file, err := os.Open(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("avatar", filepath.Base(args[0]))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if _, err := io.Copy(part, file); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	mw.Close()

	req, _ := http.NewRequest("POST", getAPIURL()+"/profile/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		fmt.Println("✓ Avatar uploaded")
	} else {
		fmt.Printf("✗ Avatar upload failed: %v\n", result)
	}
}

// Helper functions

// tokenPreview truncates long tokens for display; short or corrupt
// token files are shown as-is.
func tokenPreview(token string) string {
	if len(token) > 20 {
		return token[:20]
	}
	return token
}

func getAPIURL() string {
	if url := os.Getenv("PROFILEHUB_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.profilehub/token"
}

func saveToken(token string) error {
	home, _ := os.UserHomeDir()
	os.MkdirAll(home+"/.profilehub", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`ProfileHub CLI

Usage:
  profilehub <command> [options]

Commands:
  auth     Account management (register, login, logout, who, change-password, delete)
  profile  Profile operations (show, update, avatar)
  help     Show this help message

Environment Variables:
  PROFILEHUB_API    API endpoint (default: http://localhost:8080/api)

Examples:
  profilehub auth register -username alice -email alice@example.com -password secret
  profilehub auth login -username alice -password secret
  profilehub auth change-password -current secret -new stronger
  profilehub profile update -bio "Gopher at large" -location Amsterdam
  profilehub profile avatar ./avatar.png
`)
}
