package storageutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/google/uuid"
	"github.com/phayes/freeport"
	"github.com/pierrec/lz4/v4"

	"github.com/nodeprof/nodeprof/internal/storageprovider"
	"github.com/nodeprof/nodeprof/internal/storageutil"
)

const bucketName = "snapshots"

var server *fakestorage.Server

type snapshot struct {
	Kind    string `json:"kind"`
	Payload []int  `json:"payload"`
}

func TestMain(m *testing.M) {
	port, err := freeport.GetFreePort()
	if err != nil {
		log.Fatalf("no free port found: %v", err)
	}
	publicHost := fmt.Sprintf("127.0.0.1:%d", port)
	server, err = fakestorage.NewServerWithOptions(fakestorage.Options{
		PublicHost: publicHost,
		Host:       "127.0.0.1",
		Port:       uint16(port),
		Scheme:     "http",
	})
	if err != nil {
		log.Fatalf("couldn't set up gcs server: %v", err)
	}
	os.Setenv("STORAGE_EMULATOR_HOST", publicHost)
	server.CreateBucketWithOpts(fakestorage.CreateBucketOpts{Name: bucketName})

	os.Exit(m.Run())
}

func newHandler(t *testing.T) storageutil.ObjectHandler {
	t.Helper()
	storageClient, err := storage.NewClient(context.Background())
	if err != nil {
		t.Fatalf("we should be able to create a client: %v", err)
	}
	return &storageprovider.GCS{BucketHandle: storageClient.Bucket(bucketName)}
}

func TestCompressedWrite(t *testing.T) {
	ctx := context.Background()
	handler := newHandler(t)
	objectName := uuid.New().String()
	original := snapshot{Kind: "cpu", Payload: []int{1, 2, 3, 4}}

	err := storageutil.CompressedWrite(ctx, handler, objectName, original)
	if err != nil {
		t.Fatalf("we should be able to write: %v", err)
	}

	object, err := server.GetObject(bucketName, objectName)
	if err != nil {
		t.Fatalf("we should be able to read the object: %v", err)
	}
	uncompressed, err := io.ReadAll(lz4.NewReader(bytes.NewBuffer(object.Content)))
	if err != nil {
		t.Fatalf("we should be able to uncompress the data: %v", err)
	}
	var stored snapshot
	if err := json.Unmarshal(uncompressed, &stored); err != nil {
		t.Fatalf("we should be able to unmarshal the data: %v", err)
	}
	if stored.Kind != original.Kind || len(stored.Payload) != len(original.Payload) {
		t.Fatalf("data should be identical: %+v %+v", original, stored)
	}
}

func TestUnmarshalCompressed(t *testing.T) {
	originalData := []byte(`{"kind":"heap","payload":[1,2,3,4]}`)
	var compressedData bytes.Buffer
	w := lz4.NewWriter(&compressedData)
	_, _ = w.Write(originalData)
	if err := w.Close(); err != nil {
		t.Fatalf("we should be able to close the writer: %v", err)
	}
	objectName := uuid.New().String()

	server.CreateObject(fakestorage.Object{
		ObjectAttrs: fakestorage.ObjectAttrs{
			BucketName: bucketName,
			Name:       objectName,
		},
		Content: compressedData.Bytes(),
	})

	handler := newHandler(t)
	var stored snapshot
	err := storageutil.UnmarshalCompressed(context.Background(), handler, objectName, &stored)
	if err != nil {
		t.Fatalf("we should be able to read the object: %v", err)
	}
	if stored.Kind != "heap" || len(stored.Payload) != 4 {
		t.Fatalf("data should be identical: %+v", stored)
	}
}

func TestUnmarshalCompressedNotFound(t *testing.T) {
	handler := newHandler(t)
	var stored snapshot
	err := storageutil.UnmarshalCompressed(context.Background(), handler, "does-not-exist", &stored)
	if err != storageutil.ErrObjectNotFound {
		t.Fatalf("expected ErrObjectNotFound, got: %v", err)
	}
}
