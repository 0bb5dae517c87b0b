package processor

import (
	"DeliveryInsight/src/config"
	"errors"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordsFromFrame(t *testing.T) {
	csv := sampleHeader + "\n" +
		"a1,33,4.7,2022-03-19,11:30:00,11:45:00,Sunny,High,motorcycle,Urban,120,Clothing\n" +
		"a2,NA,NA,2022-03-20,19:45:00,19:50:00,Stormy,Jam,scooter,Metropolitian,abc,Toys\n" +
		"a3,29, 3 ,2022-03-21,null,08:40:00,Fog,Low,van,Semi-Urban,40,Snacks\n"

	ds, err := RecordsFromFrame(loadCSV(t, csv), nil)
	require.NoError(t, err)
	require.Len(t, ds.Records, 3)
	assert.Equal(t, []string{"Order_ID", "Agent_Age", "Traffic"}, ds.Extras())

	r := ds.Records[0]
	assert.Equal(t, 1, r.Row)
	assert.Equal(t, "2022-03-19", r.OrderDate)
	require.NotNil(t, r.AgentRating)
	assert.Equal(t, 4.7, *r.AgentRating)
	require.NotNil(t, r.DeliveryTime)
	assert.Equal(t, 120.0, *r.DeliveryTime)
	assert.Equal(t, map[string]string{"Order_ID": "a1", "Agent_Age": "33", "Traffic": "High"}, r.Extra)
	assert.False(t, r.Incomplete())

	r = ds.Records[1]
	assert.Nil(t, r.AgentRating)
	assert.Nil(t, r.DeliveryTime, "unparseable number counts as missing")
	assert.Equal(t, "", r.Extra["Agent_Age"])
	assert.True(t, r.Incomplete())

	r = ds.Records[2]
	require.NotNil(t, r.AgentRating)
	assert.Equal(t, 3.0, *r.AgentRating)
	assert.Equal(t, "", r.OrderTime)
	assert.True(t, r.Incomplete())
}

func TestRecordsFromFrameMissingColumn(t *testing.T) {
	csv := "Order_Date,Order_Time,Pickup_Time,Delivery_Time,Agent_Rating,Vehicle,Area,Category\n" +
		"2022-03-19,11:30:00,11:45:00,120,4.7,motorcycle,Urban,Clothing\n"

	_, err := RecordsFromFrame(loadCSV(t, csv), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), "Weather")
}

func TestRecordsFromFrameColumnMapping(t *testing.T) {
	csv := "date,time,pickup,minutes,stars,vehicle,area,category,sky\n" +
		"2022-03-19,11:30:00,11:45:00,120,4.7,motorcycle,Urban,Clothing,Sunny\n"
	columns := map[string]string{
		config.FieldOrderDate:    "date",
		config.FieldOrderTime:    "time",
		config.FieldPickupTime:   "pickup",
		config.FieldDeliveryTime: "minutes",
		config.FieldAgentRating:  "stars",
		config.FieldVehicle:      "vehicle",
		config.FieldArea:         "area",
		config.FieldCategory:     "category",
		config.FieldWeather:      "sky",
	}

	ds, err := RecordsFromFrame(loadCSV(t, csv), columns)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Empty(t, ds.Extras())
	assert.Equal(t, "Sunny", ds.Records[0].Weather)

	out, _, err := Enrich(ds.Records)
	require.NoError(t, err)
	df := FrameFromEnriched(ds, out)
	require.NoError(t, df.Err)
	assert.Equal(t, []string{
		"date", "time", "pickup", "minutes", "stars", "vehicle", "area", "category", "sky",
		ColOrderDateTime, ColOrderWeekday, ColOrderHour, ColTimePeriod, ColRatingGroup,
	}, df.Names())
}

func TestFrameFromEnriched(t *testing.T) {
	ds, err := RecordsFromFrame(loadCSV(t, sampleCSV(30, 2)), nil)
	require.NoError(t, err)
	out, _, err := Enrich(ds.Records)
	require.NoError(t, err)

	df := FrameFromEnriched(ds, out)
	require.NoError(t, df.Err)
	assert.Equal(t, 28, df.Nrow())
	assert.Equal(t, 12+5, df.Ncol())

	assert.Equal(t, series.Float, df.Col("Delivery_Time").Type())
	assert.Equal(t, series.Int, df.Col(ColOrderHour).Type())
	assert.Equal(t, series.String, df.Col("Traffic").Type())

	first := out[0]
	assert.Equal(t, first.OrderDateTime.Format(DateTimeLayout), df.Col(ColOrderDateTime).Elem(0).String())
	assert.Equal(t, first.RatingGroup, df.Col(ColRatingGroup).Elem(0).String())
	assert.Equal(t, first.Extra["Order_ID"], df.Col("Order_ID").Elem(0).String())
}

func TestFrameFromEnrichedEmpty(t *testing.T) {
	ds, err := RecordsFromFrame(loadCSV(t, sampleCSV(3, 3)), nil)
	require.NoError(t, err)
	out, _, err := Enrich(ds.Records)
	require.NoError(t, err)

	df := FrameFromEnriched(ds, out)
	require.NoError(t, df.Err)
	assert.Equal(t, 0, df.Nrow())
	assert.Contains(t, df.Names(), ColRatingGroup)
}
