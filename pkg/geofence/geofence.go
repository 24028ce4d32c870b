package geofence

import "math"

// EarthRadiusMeters - средний радиус Земли, используемый формулой гаверсинусов
const EarthRadiusMeters = 6371000.0

// Point - географическая координата в градусах
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid проверяет, что координата конечна и лежит в допустимых диапазонах WGS84
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Fence - круговая зона вокруг точки локации.
// Center == nil: у локации нет координат, в зону не попадает никто.
type Fence struct {
	Center       *Point
	RadiusMeters int
}

// DistanceMeters возвращает расстояние по большому кругу между A и B в метрах
func DistanceMeters(latA, lonA, latB, lonB float64) float64 {
	phiA := toRadians(latA)
	phiB := toRadians(latB)
	dPhi := toRadians(latB - latA)
	dLambda := toRadians(lonB - lonA)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	h := sinPhi*sinPhi + math.Cos(phiA)*math.Cos(phiB)*sinLambda*sinLambda

	// погрешность округления выводит h за [0,1] около антиподов и нуля
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Distance - то же самое для двух точек
func Distance(a, b Point) float64 {
	return DistanceMeters(a.Lat, a.Lon, b.Lat, b.Lon)
}

// WithinRange проверяет, находится ли сотрудник внутри зоны
func WithinRange(lat, lon float64, fence Fence) bool {
	if fence.Center == nil {
		return false
	}
	return withinDistance(DistanceMeters(lat, lon, fence.Center.Lat, fence.Center.Lon), fence.RadiusMeters)
}

func withinDistance(distance float64, radiusMeters int) bool {
	return distance <= float64(radiusMeters)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
