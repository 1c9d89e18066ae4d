package kfetch

// LogoLines высота логотипа и, значит, любого отчета
const LogoLines = 8

// logo - пингвин слева от метрик. Строки одной ширины,
// чтобы колонка метрик была выровнена.
var logo = [LogoLines]string{
	`                   `,
	`        .-.        `,
	`       (.. |       `,
	`       <>  |       `,
	`      / --- \      `,
	`     ( |   | |     `,
	`   |\_)___/\)/\    `,
	`  <__)------(__/   `,
}

// Logo возвращает копию строк логотипа
func Logo() [LogoLines]string {
	return logo
}
