package banner

import "fmt"

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗██████╗ ██████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔══██╗██╔══██╗
██║     ███████║███████║   ██║   ██║  ██║██████╔╝
██║     ██╔══██║██╔══██║   ██║   ██║  ██║██╔══██╗
╚██████╗██║  ██║██║  ██║   ██║   ██████╔╝██████╔╝
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═════╝ ╚═════╝
`

// Print writes the startup banner with the effective runtime info.
func Print(addr, dbPath, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST   /v1/users                          - Register a user")
	fmt.Println("GET    /v1/users/search?q=<prefix>        - Find users by name prefix")
	fmt.Println("POST   /v1/conversations                  - Start a conversation (first message)")
	fmt.Println("GET    /v1/conversations?user=<email>     - List a user's conversations")
	fmt.Println("POST   /v1/conversations/<id>/messages    - Send a message")
	fmt.Println("GET    /v1/conversations/<id>/messages    - Load a thread")
	fmt.Println("DELETE /v1/conversations/<id>             - Leave a conversation")
	fmt.Println()
}
