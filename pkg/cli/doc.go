/*
Package cli holds the helpers shared by the callisto commands.

Output Formatting:

Command results are written as text, JSON or CSV. Results that implement
Table are rendered as aligned columns in text mode and as rows in CSV mode:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, records); err != nil {
		return err
	}

Request Files:

ReadRequests decodes a YAML stream of request documents, one per "---"
separated document, and RequestDoc.Lists turns each into attribute lists:

	docs, err := cli.ReadRequests(f)
	lists, err := docs[0].Lists(dictionary)

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(int64(len(docs)))
	progress.Increment()
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
	reload, stopReload := cli.ReloadSignals()
	defer stopReload()
*/
package cli
