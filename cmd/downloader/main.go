package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/pierrec/lz4/v4"
)

// download pulls archived snapshots by profile id and writes them out as
// plain JSON, decompressed.
func download(client *storage.Client, bucket, root string, ids chan string, errorsChan chan error, wg *sync.WaitGroup) {
	defer wg.Done()

	b := client.Bucket(bucket)
	for profileID := range ids {
		path := fmt.Sprintf("%s/%s.json", root, profileID)

		if _, err := os.Stat(path); err == nil {
			continue
		}

		f, err := os.Create(path)
		if err != nil {
			errorsChan <- err
			continue
		}

		ctx := context.Background()
		rc, err := b.Object("snapshots/" + profileID).NewReader(ctx)
		if err != nil {
			errorsChan <- err
			continue
		}

		if _, err := io.Copy(f, lz4.NewReader(rc)); err != nil {
			errorsChan <- err
			continue
		}

		err = rc.Close()
		if err != nil {
			errorsChan <- err
			continue
		}

		err = f.Close()
		if err != nil {
			errorsChan <- err
			continue
		}

		log.Println(profileID)
	}
}

func main() {
	args := os.Args[1:]
	if len(args) != 2 {
		fmt.Println("./downloader <file of profile ids> <destination directory>")
		return
	}

	bucket, ok := os.LookupEnv("NODEPROF_SNAPSHOTS_BUCKET")
	if !ok {
		bucket = "nodeprof-snapshots"
	}

	ctx := context.Background()
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer storageClient.Close()

	profileIDList := args[0]
	destination := args[1]
	file, err := os.Open(profileIDList)
	if err != nil {
		log.Fatal(err)
	}
	defer file.Close()

	if err := os.MkdirAll(destination, 0755); err != nil {
		log.Fatal(err)
	}

	var wg sync.WaitGroup

	ids := make(chan string)
	errorsChan := make(chan error)
	for i := 0; i < 128; i++ {
		wg.Add(1)
		go download(storageClient, bucket, destination, ids, errorsChan, &wg)
	}

	go func() {
		for err := range errorsChan {
			log.Println(err)
		}
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		ids <- scanner.Text()
	}

	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}

	close(ids)
	wg.Wait()
	close(errorsChan)
}
