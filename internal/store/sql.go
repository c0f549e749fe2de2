package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kjstillabower/flight-route-analytics/internal/models"
)

type airportRow struct {
	FAA   string          `gorm:"column:faa;primaryKey"`
	Name  sql.NullString  `gorm:"column:name"`
	Lat   sql.NullFloat64 `gorm:"column:lat"`
	Lon   sql.NullFloat64 `gorm:"column:lon"`
	Alt   sql.NullFloat64 `gorm:"column:alt"`
	Tzone sql.NullString  `gorm:"column:tzone"`
}

func (airportRow) TableName() string { return "airports" }

func (r airportRow) model() models.Airport {
	return models.Airport{
		Code:     r.FAA,
		Name:     r.Name.String,
		Lat:      r.Lat.Float64,
		Lon:      r.Lon.Float64,
		Altitude: r.Alt.Float64,
		Timezone: r.Tzone.String,
	}
}

type flightRow struct {
	Year         int64           `gorm:"column:year;index:idx_flights_date"`
	Month        int64           `gorm:"column:month;index:idx_flights_date"`
	Day          int64           `gorm:"column:day;index:idx_flights_date"`
	DepTime      sql.NullInt64   `gorm:"column:dep_time"`
	SchedDepTime sql.NullInt64   `gorm:"column:sched_dep_time"`
	DepDelay     sql.NullFloat64 `gorm:"column:dep_delay"`
	ArrTime      sql.NullInt64   `gorm:"column:arr_time"`
	SchedArrTime sql.NullInt64   `gorm:"column:sched_arr_time"`
	ArrDelay     sql.NullFloat64 `gorm:"column:arr_delay"`
	Carrier      sql.NullString  `gorm:"column:carrier"`
	Flight       sql.NullInt64   `gorm:"column:flight"`
	Tailnum      sql.NullString  `gorm:"column:tailnum"`
	Origin       string          `gorm:"column:origin;index:idx_flights_route"`
	Dest         string          `gorm:"column:dest;index:idx_flights_route"`
	AirTime      sql.NullFloat64 `gorm:"column:air_time"`
	Distance     sql.NullFloat64 `gorm:"column:distance"`
}

func (flightRow) TableName() string { return "flights" }

func (r flightRow) model() models.Flight {
	return models.Flight{
		Date:         models.NewDate(int(r.Year), int(r.Month), int(r.Day)),
		Origin:       r.Origin,
		Dest:         r.Dest,
		Carrier:      r.Carrier.String,
		FlightNumber: int(r.Flight.Int64),
		Tailnum:      r.Tailnum.String,
		SchedDepTime: optInt(r.SchedDepTime),
		DepTime:      optInt(r.DepTime),
		SchedArrTime: optInt(r.SchedArrTime),
		ArrTime:      optInt(r.ArrTime),
		DepDelay:     optFloat(r.DepDelay),
		ArrDelay:     optFloat(r.ArrDelay),
		AirTime:      optFloat(r.AirTime),
		Distance:     r.Distance.Float64,
	}
}

type weatherRow struct {
	Origin    string          `gorm:"column:origin;index:idx_weather_key"`
	Year      int64           `gorm:"column:year;index:idx_weather_key"`
	Month     int64           `gorm:"column:month;index:idx_weather_key"`
	Day       int64           `gorm:"column:day;index:idx_weather_key"`
	Hour      int64           `gorm:"column:hour"`
	Temp      sql.NullFloat64 `gorm:"column:temp"`
	WindDir   sql.NullFloat64 `gorm:"column:wind_dir"`
	WindSpeed sql.NullFloat64 `gorm:"column:wind_speed"`
	Precip    sql.NullFloat64 `gorm:"column:precip"`
}

func (weatherRow) TableName() string { return "weather" }

func (r weatherRow) model() models.WeatherObservation {
	return models.WeatherObservation{
		Origin:    r.Origin,
		Date:      models.NewDate(int(r.Year), int(r.Month), int(r.Day)),
		Hour:      int(r.Hour),
		Temp:      optFloat(r.Temp),
		WindDir:   optFloat(r.WindDir),
		WindSpeed: optFloat(r.WindSpeed),
		Precip:    optFloat(r.Precip),
	}
}

type planeRow struct {
	Tailnum      string          `gorm:"column:tailnum;primaryKey"`
	Year         sql.NullInt64   `gorm:"column:year"`
	Type         sql.NullString  `gorm:"column:type"`
	Manufacturer sql.NullString  `gorm:"column:manufacturer"`
	Model        sql.NullString  `gorm:"column:model"`
	Speed        sql.NullFloat64 `gorm:"column:speed"`
}

func (planeRow) TableName() string { return "planes" }

func (r planeRow) model() models.Plane {
	return models.Plane{
		Tailnum:      r.Tailnum,
		Year:         optInt(r.Year),
		Type:         r.Type.String,
		Manufacturer: r.Manufacturer.String,
		Model:        r.Model.String,
		Speed:        optFloat(r.Speed),
	}
}

func optInt(v sql.NullInt64) models.Optional[int] {
	if !v.Valid {
		return models.None[int]()
	}
	return models.Some(int(v.Int64))
}

func optFloat(v sql.NullFloat64) models.Optional[float64] {
	if !v.Valid {
		return models.None[float64]()
	}
	return models.Some(v.Float64)
}

// SQLStore reads the flights database through GORM.
type SQLStore struct {
	db *gorm.DB
}

// Open opens the SQLite database at path.
func Open(path string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.Exec("PRAGMA busy_timeout=5000").Error; err != nil {
		return nil, fmt.Errorf("store: busy timeout: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Migrate creates any missing tables, columns and indexes. The production
// database is pre-populated; this serves fixtures and fresh files.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&airportRow{}, &flightRow{}, &weatherRow{}, &planeRow{}); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLStore) Airport(ctx context.Context, code string) (models.Airport, error) {
	defer observeQuery(queryAirport).ObserveDuration()
	var row airportRow
	err := s.db.WithContext(ctx).Where("faa = ?", code).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Airport{}, fmt.Errorf("airport %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return models.Airport{}, fmt.Errorf("store: airport %s: %w", code, err)
	}
	return row.model(), nil
}

func (s *SQLStore) Airports(ctx context.Context, codes []string) (map[string]models.Airport, error) {
	defer observeQuery(queryAirports).ObserveDuration()
	out := make(map[string]models.Airport, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	var rows []airportRow
	if err := s.db.WithContext(ctx).Where("faa IN ?", codes).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: airports: %w", err)
	}
	for _, r := range rows {
		out[r.FAA] = r.model()
	}
	return out, nil
}

func (s *SQLStore) FlightsByRoute(ctx context.Context, origin, dest string) ([]models.Flight, error) {
	defer observeQuery(queryFlightsByRoute).ObserveDuration()
	return s.flights(ctx, s.db.Where("origin = ? AND dest = ?", origin, dest))
}

func (s *SQLStore) FlightsByRouteOnDate(ctx context.Context, origin, dest string, date models.Date) ([]models.Flight, error) {
	defer observeQuery(queryFlightsByRoute).ObserveDuration()
	return s.flights(ctx, s.db.
		Where("origin = ? AND dest = ?", origin, dest).
		Where("year = ? AND month = ? AND day = ?", date.Year, date.Month, date.Day))
}

func (s *SQLStore) FlightsFromOriginOnDate(ctx context.Context, origin string, date models.Date) ([]models.Flight, error) {
	defer observeQuery(queryFlightsByOrigin).ObserveDuration()
	return s.flights(ctx, s.db.
		Where("origin = ?", origin).
		Where("year = ? AND month = ? AND day = ?", date.Year, date.Month, date.Day))
}

// FlightsFromOrigin returns flights leaving origin; limit <= 0 means no limit.
func (s *SQLStore) FlightsFromOrigin(ctx context.Context, origin string, limit int) ([]models.Flight, error) {
	defer observeQuery(queryFlightsByOrigin).ObserveDuration()
	q := s.db.Where("origin = ?", origin)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return s.flights(ctx, q)
}

func (s *SQLStore) flights(ctx context.Context, q *gorm.DB) ([]models.Flight, error) {
	var rows []flightRow
	if err := q.WithContext(ctx).Order("rowid").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: flights: %w", err)
	}
	out := make([]models.Flight, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *SQLStore) Weather(ctx context.Context, wq WeatherQuery) ([]models.WeatherObservation, error) {
	defer observeQuery(queryWeather).ObserveDuration()
	q := s.db.WithContext(ctx).
		Where("origin = ?", wq.Origin).
		Where("year = ? AND month = ? AND day = ?", wq.Date.Year, wq.Date.Month, wq.Date.Day)
	if h, ok := wq.Hour.Get(); ok {
		q = q.Where("hour = ?", h)
	}
	var rows []weatherRow
	if err := q.Order("hour").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: weather: %w", err)
	}
	out := make([]models.WeatherObservation, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *SQLStore) PlanesByTailnum(ctx context.Context, tailnums []string) ([]models.Plane, error) {
	defer observeQuery(queryPlanes).ObserveDuration()
	if len(tailnums) == 0 {
		return nil, nil
	}
	var rows []planeRow
	if err := s.db.WithContext(ctx).Where("tailnum IN ?", tailnums).Order("tailnum").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: planes: %w", err)
	}
	out := make([]models.Plane, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

func (s *SQLStore) EachFlightWithAirTime(ctx context.Context, batchSize int, fn func([]models.Flight) error) error {
	defer observeQuery(queryFlightScan).ObserveDuration()
	return s.scanFlights(ctx, batchSize, "air_time > 0 AND distance > 0", fn)
}

func (s *SQLStore) EachFlight(ctx context.Context, batchSize int, fn func([]models.Flight) error) error {
	defer observeQuery(queryFlightScan).ObserveDuration()
	return s.scanFlights(ctx, batchSize, "", fn)
}

// scanFlights pages through flights matching filter. The flights table has
// no primary key, so pages are keyed on rowid.
func (s *SQLStore) scanFlights(ctx context.Context, batchSize int, filter string, fn func([]models.Flight) error) error {
	if batchSize <= 0 {
		batchSize = 5000
	}
	var after int64
	for {
		var rows []struct {
			RowID  int64     `gorm:"column:row_id"`
			Flight flightRow `gorm:"embedded"`
		}
		q := s.db.WithContext(ctx).
			Table("flights").
			Select("rowid AS row_id, *").
			Where("rowid > ?", after)
		if filter != "" {
			q = q.Where(filter)
		}
		if err := q.Order("rowid").Limit(batchSize).Find(&rows).Error; err != nil {
			return fmt.Errorf("store: scan flights: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		batch := make([]models.Flight, len(rows))
		for i, r := range rows {
			batch[i] = r.Flight.model()
		}
		if err := fn(batch); err != nil {
			return err
		}
		after = rows[len(rows)-1].RowID
		if len(rows) < batchSize {
			return nil
		}
	}
}

func (s *SQLStore) EachWeather(ctx context.Context, batchSize int, fn func([]models.WeatherObservation) error) error {
	defer observeQuery(queryWeatherScan).ObserveDuration()
	if batchSize <= 0 {
		batchSize = 5000
	}
	var after int64
	for {
		var rows []struct {
			RowID   int64      `gorm:"column:row_id"`
			Weather weatherRow `gorm:"embedded"`
		}
		err := s.db.WithContext(ctx).
			Table("weather").
			Select("rowid AS row_id, *").
			Where("rowid > ?", after).
			Order("rowid").
			Limit(batchSize).
			Find(&rows).Error
		if err != nil {
			return fmt.Errorf("store: scan weather: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		batch := make([]models.WeatherObservation, len(rows))
		for i, r := range rows {
			batch[i] = r.Weather.model()
		}
		if err := fn(batch); err != nil {
			return err
		}
		after = rows[len(rows)-1].RowID
		if len(rows) < batchSize {
			return nil
		}
	}
}

func (s *SQLStore) UpdatePlaneSpeeds(ctx context.Context, speeds map[string]float64) (int64, error) {
	defer observeQuery(queryUpdateSpeeds).ObserveDuration()
	tails := make([]string, 0, len(speeds))
	for t := range speeds {
		tails = append(tails, t)
	}
	sort.Strings(tails)

	var updated int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range tails {
			res := tx.Model(&planeRow{}).Where("tailnum = ?", t).Update("speed", speeds[t])
			if res.Error != nil {
				return fmt.Errorf("update speed for %s: %w", t, res.Error)
			}
			updated += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: update plane speeds: %w", err)
	}
	return updated, nil
}
