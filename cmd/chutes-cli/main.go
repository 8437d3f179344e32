// chutes-cli is a debug CLI for poking the Chutes API through the
// plugin's client. Configuration comes from the environment
// (CHUTES_API_KEY, optionally CHUTES_API_BASE_URL).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tududes/plugin-chutes/pkg/chutes"
	"github.com/tududes/plugin-chutes/pkg/config"
	"github.com/tududes/plugin-chutes/pkg/models"
	"github.com/tududes/plugin-chutes/pkg/observability"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	timeout := flag.Duration("timeout", time.Minute, "overall command timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}

	logger := observability.NewStandardLogger("chutes-cli")
	if *verbose {
		logger = logger.(*observability.StandardLogger).WithLevel(observability.LogLevelDebug)
	}

	client, err := chutes.NewClient(cfg, chutes.WithLogger(logger))
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, client, flag.Args()); err != nil {
		fatal(err)
	}
}

func run(ctx context.Context, client *chutes.Client, args []string) error {
	switch cmd := args[0]; cmd {
	case "whoami":
		user, err := client.GetCurrentUser(ctx)
		if err != nil {
			return err
		}
		return printJSON(user)
	case "balance":
		deposit, err := client.GetDeveloperDeposit(ctx)
		if err != nil {
			return err
		}
		return printJSON(deposit)
	case "chutes":
		list, err := client.ListChutes(ctx)
		if err != nil {
			return err
		}
		return printJSON(list)
	case "chute":
		if len(args) < 2 {
			return fmt.Errorf("usage: chutes-cli chute <id>")
		}
		chute, err := client.GetChute(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(chute)
	case "deploy":
		if len(args) < 2 {
			return fmt.Errorf("usage: chutes-cli deploy <name> [image]")
		}
		req := &models.ChuteDeployRequest{Name: args[1]}
		if len(args) > 2 {
			req.Image = args[2]
		}
		chute, err := client.DeployChute(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(chute)
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: chutes-cli delete <id>")
		}
		return client.DeleteChute(ctx, args[1])
	case "cords":
		if len(args) < 2 {
			return fmt.Errorf("usage: chutes-cli cords <chute-id>")
		}
		cords, err := client.ListCords(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(cords)
	case "invoke":
		if len(args) < 3 {
			return fmt.Errorf("usage: chutes-cli invoke <chute-id> <cord> [json-kwargs]")
		}
		inv := &models.CordInvocation{}
		if len(args) > 3 {
			if err := json.Unmarshal([]byte(args[3]), &inv.Kwargs); err != nil {
				return fmt.Errorf("kwargs must be a JSON object: %v", err)
			}
		}
		result, err := client.InvokeCord(ctx, args[1], args[2], inv)
		if err != nil {
			return err
		}
		fmt.Println(string(result))
		return nil
	case "images":
		list, err := client.ListImages(ctx)
		if err != nil {
			return err
		}
		return printJSON(list)
	case "image":
		if len(args) < 2 {
			return fmt.Errorf("usage: chutes-cli image <id>")
		}
		image, err := client.GetImage(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(image)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: chutes-cli [flags] <command> [args]

commands:
  whoami                             show the authenticated user
  balance                            show the developer deposit
  chutes                             list chutes
  chute <id>                         show one chute
  deploy <name> [image]              deploy a chute
  delete <id>                        delete a chute
  cords <chute-id>                   list cords on a chute
  invoke <chute-id> <cord> [kwargs]  invoke a cord
  images                             list images
  image <id>                         show one image

flags:
`)
	flag.PrintDefaults()
}
