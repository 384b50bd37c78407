package main

import (
	"fmt"
	"strings"

	"github.com/IMQS/cli"
	"github.com/IMQS/log"

	"github.com/netz-ac/fbsmslib"
)

func main() {
	app := cli.App{}
	app.Description = "fbsms -c=configfile [options] command"
	app.DefaultExec = exec
	app.AddCommand("send", "Send an SMS to the receivers given with -to")
	app.AddCommand("list", "List all SMS stored on the router")
	app.AddCommand("incoming", "List the received SMS stored on the router")
	app.AddCommand("serve", "Run the SMS relay HTTP service")
	app.AddValueOption("c", "configfile", "Configuration file. This option is mandatory")
	app.AddValueOption("to", "receivers", "Comma separated list of receivers (send)")
	app.AddValueOption("m", "message", "Message text (send)")
	app.Run()
}

func exec(cmdName string, args []string, options cli.OptionSet) int {
	configFile := options["c"]
	if configFile == "" {
		fmt.Printf("You must specify a config file\n")
		return 1
	}

	config := fbsmslib.Configuration{}
	if err := config.NewConfig(configFile); err != nil {
		fmt.Printf("Error reading config: %v\n", err)
		return 1
	}

	if cmdName == "serve" {
		server := &fbsmslib.Server{Config: config}
		if err := server.Initialize(); err != nil {
			return 1
		}
		if err := server.StartServer(); err != nil {
			return 1
		}
		return 0
	}

	logfile := config.Logfile
	if logfile == "" {
		logfile = "stdout"
	}
	client, err := config.NewClient(log.New(logfile, false))
	if err != nil {
		fmt.Printf("Error creating SMS client: %v\n", err)
		return 1
	}

	switch cmdName {
	case "send":
		return send(client, options["to"], options["m"])
	case "list":
		return list(client.GetSMS)
	case "incoming":
		return list(client.GetSMSIncoming)
	default:
		fmt.Printf("Unknown command %v\n", cmdName)
		return 1
	}
}

func send(client *fbsmslib.Client, to, message string) int {
	if to == "" || message == "" {
		fmt.Printf("send needs -to and -m\n")
		return 1
	}
	receivers := strings.Split(to, ",")
	failed := 0
	for _, res := range client.SendSMSMultiple(receivers, message) {
		if res.OK() {
			fmt.Printf("%v: sent\n", res.Receiver)
			continue
		}
		failed++
		fmt.Printf("%v: %v\n", res.Receiver, res.Err)
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func list(fetch func() ([]fbsmslib.Message, error)) int {
	msgs, err := fetch()
	if err != nil {
		fmt.Printf("Error fetching SMS: %v\n", err)
		return 1
	}
	for _, m := range msgs {
		peer := m.Sender
		if m.Direction == fbsmslib.Outgoing {
			peer = m.Recipient
		}
		fmt.Printf("%v\t%v\t%v\t%v\n", m.Date, m.Direction, peer, m.Text)
	}
	return 0
}
