package services

import "github.com/prometheus/client_golang/prometheus"

var (
	listingMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_mutations_total",
			Help: "Listing create/update/delete/status operations by result.",
		},
		[]string{"op", "result"},
	)
	mediaUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_uploads_total",
			Help: "Listing image uploads by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(listingMutations, mediaUploads)
}

func observeMutation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	listingMutations.WithLabelValues(op, result).Inc()
}
