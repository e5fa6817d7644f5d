// Package qkd implements the client-side state machine for retrieving
// symmetric key material from ETSI QKD Key Management Entities.
//
// A Context represents one endpoint of a QKD link. The initiator pulls fresh
// keys from its KME and learns their identifiers; the responder resolves
// identifiers announced out-of-band against its own KME, so both ends hold
// the same key without it ever crossing the link.
//
// Two protocol variants share the Context shape. The stateless variant
// (ETSI GS QKD 014) issues independent mutual-TLS REST calls through
// package kmeclient. The connection-oriented variant (ETSI GS QKD 004)
// drives a vendor device through explicit Open/Close; key acquisition and
// status queries require an open session.
//
// Typical initiator flow:
//
//	qctx, err := qkd.NewContext(&qkd.Config{
//		Role:          interfaces.RoleInitiator,
//		DestURI:       "sae-2",
//		MasterKMEHost: "https://kme1.example.com",
//		CACertPath:     caPath,
//		ClientCertPath: certPath,
//		ClientKeyPath:  keyPath,
//	})
//	...
//	err = qctx.InitCertificates()
//	err = qctx.GetKey(ctx)
//	key, err := qctx.Key()
//	defer qctx.Destroy()
//
// A Context is not safe for concurrent use; callers create one Context per
// link endpoint. All retrieved key material is zeroized on Destroy.
package qkd
