// Command dialerctl is a thin HTTP-client admin CLI for the dialerd
// control plane, grounded on the teacher's cmd/apicall-cli/main.go
// (cobra command tree issuing HTTP requests against the service's own
// REST API rather than touching storage directly).
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	apiHost  string
	apiToken string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dialerctl",
		Short: "Admin CLI for the dialer control plane",
		Long:  "A command-line tool for managing campaigns, leads, and operators against a running dialerd instance.",
	}
	rootCmd.PersistentFlags().StringVar(&apiHost, "host", "http://localhost:8080", "base URL of the dialerd API")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("DIALERCTL_TOKEN"), "bearer access token")

	campaignCmd := &cobra.Command{
		Use:   "campaign",
		Short: "Manage campaigns",
	}
	campaignCmd.AddCommand(
		&cobra.Command{Use: "list", Short: "List campaigns", Run: runCampaignList},
		campaignCreateCmd(),
		campaignLifecycleCmd("start"),
		campaignLifecycleCmd("pause"),
		campaignLifecycleCmd("resume"),
		campaignLifecycleCmd("stop"),
		campaignStatsCmd(),
	)

	leadCmd := &cobra.Command{
		Use:   "lead",
		Short: "Manage leads",
	}
	leadCmd.AddCommand(leadAddCmd(), leadImportCmd(), leadListCmd())

	rootCmd.AddCommand(campaignCmd, leadCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

type httpClient struct{ client *http.Client }

func newHTTPClient() *httpClient {
	return &httpClient{client: &http.Client{Timeout: 15 * time.Second}}
}

func (c *httpClient) do(method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, apiHost+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}
	return c.client.Do(req)
}

func runCampaignList(_ *cobra.Command, _ []string) {
	resp, err := newHTTPClient().do(http.MethodGet, "/api/v1/campaigns", nil)
	if err != nil {
		fmt.Printf("error contacting API: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var campaigns []map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&campaigns)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tDIAL_RATIO\tCALLER_ID")
	fmt.Fprintln(w, "--\t----\t-----\t----------\t---------")
	for _, c := range campaigns {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", c["id"], c["name"], c["state"], c["dial_ratio"], c["caller_id"])
	}
	w.Flush()
}

func campaignCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign",
		Run: func(cmd *cobra.Command, args []string) {
			name, _ := cmd.Flags().GetString("name")
			ratio, _ := cmd.Flags().GetFloat64("dial-ratio")
			callerID, _ := cmd.Flags().GetString("caller-id")
			resp, err := newHTTPClient().do(http.MethodPost, "/api/v1/campaigns", map[string]interface{}{
				"name": name, "dial_ratio": ratio, "caller_id": callerID,
			})
			if err != nil {
				fmt.Printf("error contacting API: %v\n", err)
				return
			}
			defer resp.Body.Close()
			io.Copy(os.Stdout, resp.Body)
			fmt.Println()
		},
	}
	cmd.Flags().String("name", "", "campaign name (required)")
	cmd.Flags().Float64("dial-ratio", 3.0, "initial dial ratio")
	cmd.Flags().String("caller-id", "", "outbound caller ID")
	return cmd
}

func campaignLifecycleCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [campaign-id]",
		Short: "Transition a campaign to " + action,
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			resp, err := newHTTPClient().do(http.MethodPost, "/api/v1/campaigns/"+args[0]+"/"+action, nil)
			if err != nil {
				fmt.Printf("error contacting API: %v\n", err)
				return
			}
			defer resp.Body.Close()
			io.Copy(os.Stdout, resp.Body)
			fmt.Println()
		},
	}
}

func campaignStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [campaign-id]",
		Short: "Show live campaign stats",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			resp, err := newHTTPClient().do(http.MethodGet, "/api/v1/campaigns/"+args[0]+"/stats", nil)
			if err != nil {
				fmt.Printf("error contacting API: %v\n", err)
				return
			}
			defer resp.Body.Close()
			var stats map[string]interface{}
			_ = json.NewDecoder(resp.Body).Decode(&stats)
			for k, v := range stats {
				fmt.Printf("%-18s %v\n", k+":", v)
			}
		},
	}
}

func leadAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [campaign-id]",
		Short: "Add a single lead",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			phone, _ := cmd.Flags().GetString("phone")
			name, _ := cmd.Flags().GetString("name")
			resp, err := newHTTPClient().do(http.MethodPost, "/api/v1/campaigns/"+args[0]+"/leads", map[string]interface{}{
				"phone_number": phone, "name": name,
			})
			if err != nil {
				fmt.Printf("error contacting API: %v\n", err)
				return
			}
			defer resp.Body.Close()
			io.Copy(os.Stdout, resp.Body)
			fmt.Println()
		},
	}
	cmd.Flags().String("phone", "", "E.164 phone number (required)")
	cmd.Flags().String("name", "", "lead name")
	return cmd
}

func leadListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [campaign-id]",
		Short: "List leads in a campaign",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			resp, err := newHTTPClient().do(http.MethodGet, "/api/v1/campaigns/"+args[0]+"/leads", nil)
			if err != nil {
				fmt.Printf("error contacting API: %v\n", err)
				return
			}
			defer resp.Body.Close()
			var leads []map[string]interface{}
			_ = json.NewDecoder(resp.Body).Decode(&leads)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPHONE\tSTATE\tRETRY")
			for _, l := range leads {
				fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", l["id"], l["phone_number"], l["state"], l["retry_count"])
			}
			w.Flush()
		},
	}
}

func leadImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [campaign-id] [csv-file]",
		Short: "Bulk-import leads from a CSV file",
		Args:  cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			f, err := os.Open(args[1])
			if err != nil {
				fmt.Printf("error opening file: %v\n", err)
				return
			}
			defer f.Close()

			var buf bytes.Buffer
			buf.WriteString("--boundary\r\nContent-Disposition: form-data; name=\"file\"; filename=\"leads.csv\"\r\nContent-Type: text/csv\r\n\r\n")
			io.Copy(&buf, f)
			buf.WriteString("\r\n--boundary--\r\n")

			req, err := http.NewRequest(http.MethodPost, apiHost+"/api/v1/campaigns/"+args[0]+"/leads/import", &buf)
			if err != nil {
				fmt.Printf("error building request: %v\n", err)
				return
			}
			req.Header.Set("Content-Type", "multipart/form-data; boundary=boundary")
			if apiToken != "" {
				req.Header.Set("Authorization", "Bearer "+apiToken)
			}
			resp, err := newHTTPClient().client.Do(req)
			if err != nil {
				fmt.Printf("error contacting API: %v\n", err)
				return
			}
			defer resp.Body.Close()
			io.Copy(os.Stdout, resp.Body)
			fmt.Println()
		},
	}
	return cmd
}
