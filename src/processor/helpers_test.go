package processor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/require"
)

const sampleHeader = "Order_ID,Agent_Age,Agent_Rating,Order_Date,Order_Time,Pickup_Time,Weather,Traffic,Vehicle,Area,Delivery_Time,Category"

var (
	sampleWeather    = []string{"Sunny", "Stormy", "Cloudy", "Fog"}
	sampleTraffic    = []string{"High", "Jam", "Low"}
	sampleVehicles   = []string{"motorcycle", "scooter", "van"}
	sampleAreas      = []string{"Urban", "Metropolitian", "Semi-Urban"}
	sampleCategories = []string{
		"Clothing", "Electronics", "Sports", "Cosmetics", "Toys", "Snacks",
		"Shoes", "Apparel", "Jewelry", "Outdoors", "Grocery", "Books",
	}
)

// sampleCSV 生成 n 行数据，前 nullRatings 行的评分为空
func sampleCSV(n, nullRatings int) string {
	var b strings.Builder
	b.WriteString(sampleHeader + "\n")
	for i := 0; i < n; i++ {
		rating := fmt.Sprintf("%.1f", 2.5+float64(i%6)*0.5)
		if i < nullRatings {
			rating = ""
		}
		hour, minute := i%24, (i*7)%60
		fmt.Fprintf(&b, "ord%03d,%d,%s,2022-03-%02d,%02d:%02d:00,%02d:%02d:00,%s,%s,%s,%s,%d,%s\n",
			i, 20+i%15, rating,
			1+i%28, hour, minute, hour, (minute+10)%60,
			sampleWeather[i%len(sampleWeather)],
			sampleTraffic[i%len(sampleTraffic)],
			sampleVehicles[i%len(sampleVehicles)],
			sampleAreas[i%len(sampleAreas)],
			10+(i*13)%200,
			sampleCategories[i%len(sampleCategories)],
		)
	}
	return b.String()
}

func loadCSV(t *testing.T, csv string) dataframe.DataFrame {
	t.Helper()
	df := dataframe.ReadCSV(strings.NewReader(csv),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	require.NoError(t, df.Err)
	return df
}

func record(row int, date, orderTime string, rating *float64) DeliveryRecord {
	return DeliveryRecord{
		Row:          row,
		OrderDate:    date,
		OrderTime:    orderTime,
		PickupTime:   "12:10:00",
		DeliveryTime: fp(120),
		AgentRating:  rating,
		Vehicle:      "motorcycle",
		Area:         "Urban",
		Category:     "Clothing",
		Weather:      "Sunny",
	}
}
