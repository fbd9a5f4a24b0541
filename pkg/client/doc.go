// Package client provides a Go client for the coursedex HTTP API.
//
//	c := client.New("http://localhost:8080", client.WithAPIKey("secret"))
//
//	report, _ := c.Sync(ctx)
//
//	res, _ := c.Search(ctx, client.SearchRequest{
//	    Query:     "homework about recursion",
//	    CourseID:  "c101",
//	    TimeRange: "NEAR_FUTURE",
//	})
//	for _, item := range res.Results {
//	    fmt.Println(item.Document.Title, item.Match)
//	}
package client
