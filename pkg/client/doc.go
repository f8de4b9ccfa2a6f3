// Package client uploads field observations to a rissa server.
//
// Observations are buffered per dataset and posted to
// /v1/datasets/{dataset}/observations once a batch fills up or the flush
// interval passes, whichever comes first.
//
//	c, err := client.New(client.Config{Endpoint: "http://localhost:8080", Observer: "mel"})
//	if err != nil {
//		return err
//	}
//	if err := c.Start(ctx); err != nil {
//		return err
//	}
//	defer c.Stop()
//
//	c.Record("city", observation.Observation{
//		Entity:    "Nyhavna",
//		Timestamp: time.Now(),
//		Values:    map[string]float64{"adultCount": 12, "aonCount": 4},
//	})
//
// Every observation gets a UUID before it is queued. The server stores by
// ID, so resending a batch after a timeout is safe.
package client
