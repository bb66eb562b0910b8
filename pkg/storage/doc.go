// Package storage opens the content of a broadcast order from a local path
// or from decentralized storage.
//
// # Supported Sources
//
// Local files:
//   - Any path with a final file name element
//   - The file name is sent to the broadcast API
//
// IPFS (InterPlanetary File System):
//   - "ipfs://<CID>"
//   - Read through the Kubo HTTP API ("cat")
//   - Default API: http://127.0.0.1:5001
//
// Lighthouse (Filecoin Gateway):
//   - "filecoin://<CID>"
//   - Read through the HTTP gateway
//   - Default: https://gateway.lighthouse.storage/ipfs/
//
// Remote sources are named after their CID. CIDv0 ("Qm...") and CIDv1
// ("bafy...") are both accepted; anything after the CID ("ipfs://Qm.../x")
// is ignored.
//
// # Usage
//
//	client, err := storage.NewStorage(
//		"http://127.0.0.1:5001",
//		"https://gateway.lighthouse.storage/ipfs/",
//		10*time.Minute,
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	src, err := client.Open(ctx, "ipfs://QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer src.Close()
//
// The returned Source is a live stream; its content is read once by whoever
// uploads it. The SDK builds a storage client from Config.IpfsURL and
// Config.LighthouseURL and uses it in sdk.Client.PlaceOrderFromRef.
package storage
