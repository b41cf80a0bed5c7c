package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	client := &Client{}

	apiFlags := []cli.Flag{
		&cli.StringFlag{
			Name:        "api-url",
			Usage:       "Base URL of the Publion API",
			Value:       "http://localhost:9091",
			Sources:     cli.EnvVars("PUBLION_API_URL"),
			Destination: &client.BaseURL,
		},
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID requests act on behalf of",
			Required:    true,
			Sources:     cli.EnvVars("PUBLION_USER"),
			Destination: &client.UserID,
		},
	}

	command := &cli.Command{
		Name:                  "publion",
		Usage:                 "Turn article URLs into reviewed social media posts",
		EnableShellCompletion: true,
		Flags:                 apiFlags,
		Commands: []*cli.Command{
			{
				Name:      "create",
				Aliases:   []string{"c"},
				Usage:     "Start a pipeline run for an article URL",
				ArgsUsage: "<url>",
				Action: func(ctx context.Context, command *cli.Command) error {
					url := command.Args().First()
					if url == "" {
						return cli.Exit("url argument is required", 1)
					}

					return client.Create(ctx, url)
				},
			},
			{
				Name:      "get",
				Aliases:   []string{"g"},
				Usage:     "Show a run",
				ArgsUsage: "<execution-id>",
				Action: func(ctx context.Context, command *cli.Command) error {
					id := command.Args().First()
					if id == "" {
						return cli.Exit("execution-id argument is required", 1)
					}

					return client.Get(ctx, id)
				},
			},
			{
				Name:    "inbox",
				Aliases: []string{"i"},
				Usage:   "List runs waiting on review or re-authentication",
				Action: func(ctx context.Context, command *cli.Command) error {
					return client.Inbox(ctx)
				},
			},
			{
				Name:      "approve",
				Usage:     "Approve a suspended run's content and image",
				ArgsUsage: "<execution-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "twitter",
						Usage: "Replace the Twitter draft before approving",
					},
					&cli.StringFlag{
						Name:  "linkedin",
						Usage: "Replace the LinkedIn draft before approving",
					},
					&cli.BoolFlag{
						Name:  "no-image",
						Usage: "Publish without the selected image",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					id := command.Args().First()
					if id == "" {
						return cli.Exit("execution-id argument is required", 1)
					}

					return client.Approve(ctx, id, ApproveOptions{
						EditedTwitter:  command.String("twitter"),
						EditedLinkedIn: command.String("linkedin"),
						RejectImage:    command.Bool("no-image"),
					})
				},
			},
			{
				Name:      "reject",
				Usage:     "Reject a suspended run's content and end it",
				ArgsUsage: "<execution-id>",
				Action: func(ctx context.Context, command *cli.Command) error {
					id := command.Args().First()
					if id == "" {
						return cli.Exit("execution-id argument is required", 1)
					}

					return client.Reject(ctx, id)
				},
			},
			{
				Name:      "regenerate",
				Usage:     "Ask for fresh drafts on a suspended run",
				ArgsUsage: "<execution-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "twitter",
						Usage: "Regenerate only the Twitter draft",
					},
					&cli.BoolFlag{
						Name:  "linkedin",
						Usage: "Regenerate only the LinkedIn draft",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					id := command.Args().First()
					if id == "" {
						return cli.Exit("execution-id argument is required", 1)
					}

					return client.Regenerate(ctx, id, command.Bool("twitter"), command.Bool("linkedin"))
				},
			},
			{
				Name:    "connections",
				Aliases: []string{"conn"},
				Usage:   "List publishing accounts",
				Action: func(ctx context.Context, command *cli.Command) error {
					return client.Connections(ctx)
				},
			},
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
